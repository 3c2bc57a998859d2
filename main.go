package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	units "github.com/docker/go-units"

	"github.com/virt-do/kaps/config"
	"github.com/virt-do/kaps/container"
	"github.com/virt-do/kaps/gc"
	"github.com/virt-do/kaps/image"
)

func main() {
	conf := config.DefaultConfig()
	if root := os.Getenv("KAPS_ROOT"); root != "" {
		conf.RootDir = root
	}
	if dir := os.Getenv("KAPS_CONTAINERS_DIR"); dir != "" {
		conf.ContainersDir = dir
	}

	if len(os.Args) < 2 {
		usage()
	}

	ctx := context.Background()

	images, err := image.NewManager(ctx, conf)
	if err != nil {
		fatalf("init image manager: %v", err)
	}
	states := container.NewStore(conf)
	launcher := container.NewLauncher(states)

	switch os.Args[1] {
	case "pull":
		cmdPull(ctx, images, os.Args[2:])
	case "mount":
		cmdMount(ctx, images, os.Args[2:])
	case "run":
		cmdRun(ctx, launcher, os.Args[2:])
	case "stop":
		cmdStop(ctx, launcher, os.Args[2:])
	case "list", "ls":
		cmdList(ctx, images)
	case "gc":
		cmdGC(ctx, images)
	default:
		fatalf("unknown command: %s", os.Args[1])
	}
}

func cmdPull(ctx context.Context, images *image.Manager, args []string) {
	if len(args) == 0 {
		fatalf("usage: kaps pull <reference> [reference...]")
	}
	for _, ref := range args {
		meta, err := images.Pull(ctx, ref)
		if err != nil {
			fatalf("pull %s: %v", ref, err)
		}
		fmt.Printf("Pulled %s (id %s, %d layers)\n", ref, truncateID(meta.ID, 12), len(meta.Layers))
	}
}

func cmdMount(ctx context.Context, images *image.Manager, args []string) {
	if len(args) != 1 {
		fatalf("usage: kaps mount <image-id>")
	}
	imageID := args[0]

	containerID, err := images.Mount(ctx, imageID)
	if err != nil {
		fatalf("mount %s: %v", imageID, err)
	}

	fmt.Printf("Mounted %s -> container %s\n", imageID, containerID)
}

func cmdRun(ctx context.Context, launcher *container.Launcher, args []string) {
	if len(args) != 1 {
		fatalf("usage: kaps run <container-id>")
	}
	if err := launcher.Run(ctx, args[0]); err != nil {
		fatalf("run %s: %v", args[0], err)
	}
}

func cmdStop(ctx context.Context, launcher *container.Launcher, args []string) {
	if len(args) != 1 {
		fatalf("usage: kaps stop <container-id>")
	}
	if err := launcher.Stop(ctx, args[0]); err != nil {
		fatalf("stop %s: %v", args[0], err)
	}
	fmt.Printf("Stopped %s\n", args[0])
}

func cmdList(ctx context.Context, images *image.Manager) {
	list, err := images.List(ctx)
	if err != nil {
		fatalf("list: %v", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0) //nolint:mnd
	fmt.Fprintln(w, "ID\tREFERENCE\tSIZE\tCREATED")
	for _, img := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			truncateID(img.ID, 12), img.Name, formatSize(img.Size), img.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}

func cmdGC(ctx context.Context, images *image.Manager) {
	orch := gc.New()
	images.RegisterGC(orch)
	if err := orch.Run(ctx); err != nil {
		fatalf("gc: %v", err)
	}
	fmt.Println("GC complete")
}

func formatSize(bytes int64) string {
	return units.HumanSize(float64(bytes))
}

func truncateID(id string, n int) string {
	if len(id) <= n {
		return id
	}
	return id[:n]
}

func usage() {
	fmt.Fprintf(os.Stderr, `kaps - minimal OCI container runtime

Usage: kaps <command> [arguments]

Environment:
  KAPS_ROOT            Root data directory (default: /var/lib/kaps)
  KAPS_CONTAINERS_DIR  Live container state directory (default: /var/run/kaps/containers)

Commands:
  pull  <reference> [reference...]   Pull OCI image(s) from a registry
  mount <image-id>                   Snapshot an image's layers and create a bundle + container
  run   <container-id>               Run a mounted container's process to completion
  stop  <container-id>                Stop a running container (SIGTERM, then SIGKILL)
  list                                List locally pulled images
  gc                                  Remove layers unreferenced by any known image
`)
	os.Exit(1)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
