package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fruitsalade/webclient/internal/bulk"
	"github.com/fruitsalade/webclient/internal/jobs"
	"github.com/fruitsalade/webclient/pkg/davpath"
	"github.com/fruitsalade/webclient/pkg/httperror"
	"github.com/fruitsalade/webclient/pkg/resource"
	"github.com/fruitsalade/webclient/pkg/webdav"
)

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "ls", "list":
		return a.cmdList(ctx, args)
	case "info":
		return a.cmdInfo(ctx, args)
	case "mkdir":
		return a.cmdMkdir(ctx, args)
	case "get":
		return a.cmdGet(ctx, args)
	case "put":
		return a.cmdPut(ctx, args)
	case "cp":
		return a.cmdTransfer(ctx, args, false)
	case "mv":
		return a.cmdTransfer(ctx, args, true)
	case "rm":
		return a.cmdRemove(ctx, args)
	case "trash":
		return a.cmdList(ctx, append([]string{"-trash"}, args...))
	case "restore":
		return a.cmdRestore(ctx, args)
	case "empty-trash":
		return a.cmdEmptyTrash(ctx, args)
	case "url":
		return a.cmdURL(ctx, args)
	case "versions":
		return a.cmdVersions(ctx, args)
	case "search":
		return a.cmdSearch(ctx, args)
	case "favorites":
		return a.cmdFavorites(ctx, args)
	case "fav":
		return a.cmdFavorite(ctx, args)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (a *app) cmdList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	trash := fs.Bool("trash", false, "List the trash bin")
	fs.Parse(args)

	p := fs.Arg(0)
	if p == "" {
		p = "/"
	}
	res, err := a.dav.ListFiles(ctx, a.space, p, webdav.ListFilesOptions{Trash: *trash})
	if err != nil {
		return err
	}
	if len(res.Children) == 0 {
		fmt.Println("No entries")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if *trash {
		fmt.Fprintln(w, "ID\tPATH\tSIZE\tDELETED")
		fmt.Fprintln(w, "--\t----\t----\t-------")
		for _, r := range res.Children {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Path, r.Size, r.DDate)
		}
	} else {
		fmt.Fprintln(w, "TYPE\tNAME\tSIZE\tMODIFIED\tID")
		fmt.Fprintln(w, "----\t----\t----\t--------\t--")
		for _, r := range res.Children {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Type, r.Name, r.Size, r.MDate, r.ID)
		}
	}
	return w.Flush()
}

// resourceInfo is the JSON shape printed by info.
type resourceInfo struct {
	resource.Resource
	Capabilities map[string]bool `json:"capabilities"`
}

func (a *app) cmdInfo(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: info <path>")
	}
	r, err := a.dav.GetFileInfo(ctx, a.space, args[0], webdav.ListFilesOptions{})
	if err != nil {
		return err
	}

	out := resourceInfo{
		Resource: r,
		Capabilities: map[string]bool{
			"upload":        resource.CanUpload(r),
			"download":      resource.CanDownload(r),
			"delete":        resource.CanBeDeleted(r),
			"rename":        resource.CanRename(r),
			"share":         resource.CanShare(r, a.ability),
			"create":        resource.CanCreate(r),
			"editTags":      resource.CanEditTags(r),
			"deny":          resource.CanDeny(r),
			"mounted":       resource.IsMounted(r),
			"receivedShare": resource.IsReceivedShare(r),
			"shareRoot":     resource.IsShareRoot(r),
		},
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (a *app) cmdMkdir(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mkdir <path>")
	}
	r, err := a.dav.CreateFolder(ctx, a.space, args[0], true)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s (%s)\n", r.Path, r.ID)
	return nil
}

func (a *app) cmdGet(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: get <path> <local>")
	}
	c, err := a.dav.GetFileContents(ctx, a.space, args[0], webdav.GetFileContentsOptions{})
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[1], c.Body, 0o644); err != nil {
		return err
	}
	fmt.Printf("Downloaded %s (%d bytes)\n", args[1], len(c.Body))
	return nil
}

func (a *app) cmdPut(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("put", flag.ExitOnError)
	etag := fs.String("etag", "", "Only overwrite if the remote etag matches")
	overwrite := fs.Bool("f", false, "Overwrite an existing file")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: put [-etag e] [-f] <local> <path>")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	r, err := a.dav.PutFileContents(ctx, a.space, fs.Arg(1), webdav.PutFileContentsOptions{
		Content:           bytes.NewReader(data),
		PreviousEntityTag: *etag,
		Overwrite:         *overwrite,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %s (etag %s)\n", r.Path, r.ETag)
	return nil
}

func (a *app) cmdTransfer(ctx context.Context, args []string, move bool) error {
	fs := flag.NewFlagSet("transfer", flag.ExitOnError)
	overwrite := fs.Bool("f", false, "Overwrite the target")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: cp|mv [-f] <from> <to>")
	}

	op := a.dav.CopyFiles
	if move {
		op = a.dav.MoveFiles
	}
	return op(ctx, a.space, fs.Arg(0), a.space, fs.Arg(1), *overwrite)
}

// wait blocks until the job started by start reports.
func (a *app) wait(ctx context.Context, start func(jobs.Callback) (string, error)) (jobs.Result, error) {
	done := make(chan jobs.Result, 1)
	if _, err := start(func(r jobs.Result) { done <- r }); err != nil {
		return jobs.Result{}, err
	}
	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		return jobs.Result{}, ctx.Err()
	}
}

func printResult(verb string, r jobs.Result) error {
	for _, res := range r.Successful {
		fmt.Printf("%s %s\n", verb, res.Path)
	}
	for _, f := range r.Failed {
		fmt.Fprintf(os.Stderr, "Failed %s: %v\n", f.Resource.Path, f.Error)
	}
	if len(r.Failed) > 0 {
		return fmt.Errorf("%d of %d failed", len(r.Failed), len(r.Failed)+len(r.Successful))
	}
	return nil
}

func (a *app) cmdRemove(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: rm <path>...")
	}
	resources := make([]resource.Resource, len(args))
	for i, p := range args {
		p = davpath.JoinWith(davpath.Options{LeadingSlash: true}, p)
		resources[i] = resource.Resource{Name: davpath.Base(p), Path: p}
	}

	r, err := a.wait(ctx, func(cb jobs.Callback) (string, error) {
		return a.deletes.StartWorker(ctx, jobs.DeleteRequest{
			Topic:     bulk.TopicFileListDelete,
			Space:     a.space,
			Resources: resources,
		}, cb)
	})
	if err != nil {
		return err
	}
	return printResult("Deleted", r)
}

// trashItems returns the trash entries with the given ids.
func (a *app) trashItems(ctx context.Context, ids []string) ([]resource.Resource, error) {
	res, err := a.dav.ListFiles(ctx, a.space, "", webdav.ListFilesOptions{Trash: true})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]resource.Resource, len(res.Children))
	for _, r := range res.Children {
		byID[r.ID] = r
	}

	out := make([]resource.Resource, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("trash item %s not found", id)
		}
		out = append(out, r)
	}
	return out, nil
}

func (a *app) cmdRestore(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: restore <id>...")
	}
	items, err := a.trashItems(ctx, args)
	if err != nil {
		return err
	}

	var missing []string
	for _, folder := range jobs.AncestorFolders(items) {
		_, err := a.dav.GetFileInfo(ctx, a.space, folder, webdav.ListFilesOptions{})
		if httperror.IsNotFound(err) {
			missing = append(missing, folder)
		} else if err != nil {
			return err
		}
	}

	r, err := a.wait(ctx, func(cb jobs.Callback) (string, error) {
		return a.restore.StartWorker(ctx, jobs.RestoreRequest{
			Space:              a.space,
			Resources:          items,
			MissingFolderPaths: missing,
		}, cb)
	})
	if err != nil {
		return err
	}
	return printResult("Restored", r)
}

func (a *app) cmdEmptyTrash(ctx context.Context, args []string) error {
	if len(args) == 0 {
		if err := a.dav.ClearTrashBin(ctx, a.space, ""); err != nil {
			return err
		}
		fmt.Println("Trash bin emptied")
		return nil
	}

	items, err := a.trashItems(ctx, args)
	if err != nil {
		return err
	}
	r, err := a.wait(ctx, func(cb jobs.Callback) (string, error) {
		return a.deletes.StartWorker(ctx, jobs.DeleteRequest{
			Topic:     bulk.TopicTrashBinDelete,
			Space:     a.space,
			Resources: items,
		}, cb)
	})
	if err != nil {
		return err
	}
	return printResult("Purged", r)
}

func (a *app) cmdURL(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("url", flag.ExitOnError)
	inline := fs.Bool("inline", false, "Inline disposition (always served from memory)")
	version := fs.String("version", "", "Version id")
	output := fs.String("o", "", "Write in-memory content to this file")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: url [-inline] [-version v] [-o file] <path>")
	}

	r, err := a.dav.GetFileInfo(ctx, a.space, fs.Arg(0), webdav.ListFilesOptions{})
	if err != nil {
		return err
	}
	opts := webdav.FileURLOptions{
		Disposition:         webdav.DispositionAttachment,
		IsURLSigningEnabled: a.cfg.URLSigningEnabled,
		SignURLTimeout:      a.cfg.SignURLTimeout,
		Version:             *version,
		DoHeadRequest:       true,
	}
	if *inline {
		opts.Disposition = webdav.DispositionInline
	}
	if a.space.IsPublic() {
		fmt.Println(a.dav.GetPublicFileURL(a.space, r))
		return nil
	}

	u, err := a.dav.GetFileURL(ctx, a.space, r, opts)
	if err != nil {
		return err
	}
	defer a.dav.RevokeURL(u)

	fmt.Println(u)
	if blob, ok := a.dav.Blobs().Get(u); ok && *output != "" {
		if err := os.WriteFile(*output, blob.Data, 0o644); err != nil {
			return err
		}
		fmt.Printf("Wrote %d bytes (%s) to %s\n", len(blob.Data), blob.ContentType, *output)
	}
	return nil
}

func (a *app) cmdVersions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("versions", flag.ExitOnError)
	restoreID := fs.String("restore", "", "Restore this version")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: versions [-restore v] <path>")
	}

	r, err := a.dav.GetFileInfo(ctx, a.space, fs.Arg(0), webdav.ListFilesOptions{})
	if err != nil {
		return err
	}
	if *restoreID != "" {
		if err := a.dav.RestoreFileVersion(ctx, a.space, r, *restoreID); err != nil {
			return err
		}
		fmt.Printf("Restored version %s of %s\n", *restoreID, r.Path)
		return nil
	}

	versions, err := a.dav.ListFileVersions(ctx, r.FileID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSIZE\tMODIFIED")
	fmt.Fprintln(w, "-------\t----\t--------")
	for _, v := range versions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", v.Name, v.Size, v.MDate)
	}
	return w.Flush()
}

func (a *app) cmdSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	limit := fs.Int("limit", 100, "Maximum number of results")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: search [-limit n] <term>")
	}

	res, err := a.dav.Search(ctx, strings.Join(fs.Args(), " "), webdav.SearchOptions{Limit: *limit})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tSIZE\tHIGHLIGHTS")
	for _, r := range res.Resources {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Path, r.Size, r.Highlights)
	}
	w.Flush()
	fmt.Printf("%d of %d results\n", len(res.Resources), res.TotalResults)
	return nil
}

func (a *app) cmdFavorites(ctx context.Context, args []string) error {
	files, err := a.dav.ListFavoriteFiles(ctx, webdav.ListFavoriteFilesOptions{Username: a.cfg.Username})
	if err != nil {
		return err
	}
	for _, r := range files {
		fmt.Println(r.Path)
	}
	return nil
}

func (a *app) cmdFavorite(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fav", flag.ExitOnError)
	off := fs.Bool("off", false, "Remove the favorite mark")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: fav [-off] <path>")
	}

	r, err := a.dav.GetFileInfo(ctx, a.space, fs.Arg(0), webdav.ListFilesOptions{})
	if err != nil {
		return err
	}
	return a.dav.SetFavorite(ctx, a.space, r, !*off)
}
