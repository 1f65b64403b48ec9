// Command photoctl uploads, browses and manages gallery photos from the
// terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"wedding-gallery/golib"
	"wedding-gallery/photoclient"
	"wedding-gallery/transcode"
)

const usage = `usage: photoctl <command> [flags]

commands:
  upload -name <guest> [-concurrency 4] files...
  list [-all]
  delete -id <id> -path <storage_path>
  couple [-set file]
  orphans

PHOTO_API_URL selects the server (default http://localhost:8080).`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := photoclient.New(golib.GetEnv("PHOTO_API_URL", "http://localhost:8080"), nil)
	if err := run(ctx, client, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *photoclient.Client, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "upload":
		return uploadCmd(ctx, c, args, out)
	case "list":
		return listCmd(ctx, c, args, out)
	case "delete":
		return deleteCmd(ctx, c, args, out)
	case "couple":
		return coupleCmd(ctx, c, args, out)
	case "orphans":
		return orphansCmd(ctx, c, out)
	case "help", "-h", "--help":
		fmt.Fprintln(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func uploadCmd(ctx context.Context, c *photoclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	name := fs.String("name", "", "guest name")
	concurrency := fs.Int("concurrency", photoclient.DefaultUploadWindow, "uploads in flight")
	if err := fs.Parse(args); err != nil {
		return err
	}

	files, err := readFiles(fs.Args())
	if err != nil {
		return err
	}

	u := photoclient.NewUploader(c, transcode.JPEG{},
		photoclient.WithUploadWindow(*concurrency),
		photoclient.WithProgress(func(index, _, done, total int) {
			fmt.Fprintf(out, "%d of %d done (%s)\n", done, total, files[index].Name)
		}),
	)
	res, err := u.UploadBatch(ctx, files, *name)
	if errors.Is(err, photoclient.ErrNoFiles) || errors.Is(err, photoclient.ErrEmptyName) {
		fmt.Fprintln(out, photoclient.SelectionMessage)
		return err
	}
	if err != nil {
		if res != nil {
			fmt.Fprintf(out, "%d of %d uploaded\n", res.Uploaded(), len(res.Items))
		}
		return err
	}
	fmt.Fprintf(out, "all %d photos uploaded\n", res.Uploaded())
	return nil
}

func listCmd(ctx context.Context, c *photoclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	all := fs.Bool("all", false, "keep loading until the last page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	v := photoclient.NewViewer(c)
	if err := v.LoadInitial(ctx); err != nil {
		return err
	}
	for *all && v.HasMore() {
		if _, err := v.LoadMore(ctx); err != nil {
			return err
		}
	}
	for _, p := range v.Photos() {
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", p.ID, p.CreatedAt.Format("2006-01-02 15:04:05"), p.GuestName, p.StoragePath)
	}
	if v.HasMore() {
		fmt.Fprintln(out, "(more photos available, use -all)")
	}
	return nil
}

func deleteCmd(ctx context.Context, c *photoclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := fs.String("id", "", "photo id")
	path := fs.String("path", "", "storage path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || *path == "" {
		return errors.New("-id and -path are required")
	}
	if err := c.DeletePhoto(ctx, *id, *path); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %s\n", *id)
	return nil
}

func coupleCmd(ctx context.Context, c *photoclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("couple", flag.ContinueOnError)
	set := fs.String("set", "", "replace the couple photo with this file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *set == "" {
		photo, err := c.CouplePhoto(ctx)
		if err != nil {
			return err
		}
		if photo == nil {
			fmt.Fprintln(out, "no couple photo set")
			return nil
		}
		fmt.Fprintln(out, photo.ImageURL)
		return nil
	}

	files, err := readFiles([]string{*set})
	if err != nil {
		return err
	}
	data, err := transcode.JPEG{}.Transcode(ctx, files[0].Data, transcode.DefaultConstraints())
	if err != nil {
		return fmt.Errorf("%w: %w", photoclient.ErrProcessImages, err)
	}
	photo, err := c.SetCouplePhoto(ctx, photoclient.File{Name: files[0].Name, ContentType: "image/jpeg", Data: data})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, photo.ImageURL)
	return nil
}

func orphansCmd(ctx context.Context, c *photoclient.Client, out io.Writer) error {
	report, err := c.Orphans(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func readFiles(paths []string) ([]photoclient.File, error) {
	files := make([]photoclient.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, photoclient.File{
			Name:        filepath.Base(p),
			ContentType: http.DetectContentType(data),
			Data:        data,
		})
	}
	return files, nil
}
