package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/normanking/cortexrig/internal/clip"
	"github.com/normanking/cortexrig/internal/retarget"
	"github.com/normanking/cortexrig/internal/skeleton"
	"github.com/normanking/cortexrig/internal/viseme"
)

func inspectCmd() *cobra.Command {
	var avatarPath, clipsDir string
	cmd := &cobra.Command{
		Use:   "inspect [clip...]",
		Short: "Report how clips retarget onto an avatar and which blendshapes it lacks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clipsDir != "" {
				cfg.Clips.Dir = clipsDir
			}
			return runInspect(cmd.OutOrStdout(), avatarPath, args)
		},
	}
	cmd.Flags().StringVar(&avatarPath, "avatar", "", "glTF/GLB avatar (built-in reference rig when empty)")
	cmd.Flags().StringVar(&clipsDir, "clips", "", "clip directory (overrides clips.dir)")
	return cmd
}

func runInspect(out io.Writer, avatarPath string, names []string) error {
	avatar, loaders, err := loadAvatar(avatarPath, cfg.Clips.Dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		names = clipNames(cfg.Clips.Names(), loaders)
	}

	store := clip.NewStore(loaders, log.Component("clips"))
	resolver := retarget.NewResolver(retarget.Options{Prefixes: cfg.Clips.Prefixes}, log.Component("retarget"))

	fmt.Fprintln(out, titleStyle.Render("Avatar"))
	fmt.Fprintf(out, "  Skeleton: %s (%d bones)\n", avatar.Skeleton.ID, len(avatar.Skeleton.Bones))
	printMorphs(out, avatar)
	fmt.Fprintln(out)

	fmt.Fprintln(out, titleStyle.Render("Clips"))
	for _, name := range names {
		src, err := store.Get(name)
		if errors.Is(err, clip.ErrNotFound) {
			fmt.Fprintf(out, "%s %s %s\n", warnStyle.Render("○"), name, dimStyle.Render("not found"))
			continue
		}
		if err != nil {
			fmt.Fprintf(out, "%s %s %s\n", warnStyle.Render("✗"), name, err)
			continue
		}
		printRetarget(out, resolver.Retarget(src, avatar.Skeleton, cfg.Clips.ExcludeFor(name)), len(src.Tracks))
	}
	return nil
}

func printMorphs(out io.Writer, avatar *skeleton.Avatar) {
	b := viseme.Bind(avatar.Morphs)
	fmt.Fprintf(out, "  Meshes:   %s\n", strings.Join(avatar.Morphs.Meshes(), ", "))
	fmt.Fprintf(out, "  Blendshapes bound: %d/%d\n", b.Bound(), int(viseme.ChannelCount))
	if missing := b.Missing(); len(missing) > 0 {
		fmt.Fprintln(out, warnStyle.Render("  Missing: "+strings.Join(missing, ", ")))
	}
}

func printRetarget(out io.Writer, rc *retarget.Clip, total int) {
	status := successStyle.Render("●")
	if rc.Empty() {
		status = warnStyle.Render("○")
	}
	fmt.Fprintf(out, "%s %s  %s\n", status, rc.Name,
		dimStyle.Render(fmt.Sprintf("%.2fs | %d/%d tracks", rc.Duration, len(rc.Tracks), total)))

	bones := make([]string, 0, len(rc.Bindings))
	for src := range rc.Bindings {
		bones = append(bones, src)
	}
	sort.Strings(bones)
	for _, src := range bones {
		fmt.Fprintf(out, "    %s → %s\n", src, rc.Bindings[src])
	}
	if len(rc.Excluded) > 0 {
		fmt.Fprintf(out, "    excluded: %s\n", strings.Join(rc.Excluded, ", "))
	}
	if len(rc.Unmapped) > 0 {
		fmt.Fprintln(out, warnStyle.Render("    unmapped: "+strings.Join(rc.Unmapped, ", ")))
	}
}
