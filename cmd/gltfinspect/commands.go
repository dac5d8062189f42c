package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/Carmen-Shannon/gltf-runtime/common"
	"github.com/Carmen-Shannon/gltf-runtime/engine/config"
	"github.com/Carmen-Shannon/gltf-runtime/engine/loader"
	"github.com/Carmen-Shannon/gltf-runtime/engine/logger"
	"github.com/Carmen-Shannon/gltf-runtime/engine/model"
	"github.com/Carmen-Shannon/gltf-runtime/engine/profiler"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	debug      bool
	profile    bool
}

// session holds what every subcommand needs after flag parsing.
type session struct {
	cfg *config.Config
	log *logger.Logger
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "gltfinspect",
		Short:         "Inspect the node graph, skeletons and animations of glTF/GLB files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (yaml, toml or json)")
	root.PersistentFlags().StringVar(&flags.envFile, "env", "", ".env file with GLTF_* defaults")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&flags.profile, "profile", false, "report per-stage import timings")

	root.AddCommand(
		newNodesCommand(flags),
		newSkeletonCommand(flags),
		newAnimationCommand(flags),
		newBatchCommand(flags),
	)
	return root
}

func openSession(flags *globalFlags) (*session, error) {
	var envFiles []string
	if flags.envFile != "" {
		envFiles = append(envFiles, flags.envFile)
	}
	if err := config.LoadEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg.Log.Development, cfg.Log.Debug || flags.debug, cfg.Log.Output...)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log}, nil
}

func (s *session) parse(path string) (loader.Parser, error) {
	opts := append(s.cfg.ParserOptions(), loader.WithLogger(s.log.SugaredLogger))
	return loader.ParseFile(path, opts...)
}

func newNodesCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "nodes <file>",
		Short: "Print the node tree with world translations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags)
			if err != nil {
				return err
			}
			defer s.log.Sync()

			p, err := s.parse(args[0])
			if err != nil {
				return err
			}
			nodes, err := p.LoadAllNodes()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			stats := p.Stats()
			fmt.Fprintf(out, "%s (glTF %s, %d nodes, %d meshes, %d skins, %d animations)\n",
				args[0], stats.Version, stats.Nodes, stats.Meshes, stats.Skins, stats.Animations)
			for i := range nodes {
				if nodes[i].ParentIndex == model.NoIndex {
					if err := printNode(out, p, nodes, i, 0); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

func printNode(out io.Writer, p loader.Parser, nodes []model.Node, index, depth int) error {
	world, err := p.ComposeTransformUpward(index)
	if err != nil {
		return err
	}
	n := &nodes[index]
	fmt.Fprintf(out, "%s[%d] %q world=(%.4f, %.4f, %.4f)", strings.Repeat("  ", depth), n.Index, n.Name,
		world.Translation[0], world.Translation[1], world.Translation[2])
	if n.MeshIndex != model.NoIndex {
		fmt.Fprintf(out, " mesh=%d", n.MeshIndex)
	}
	if n.SkinIndex != model.NoIndex {
		fmt.Fprintf(out, " skin=%d", n.SkinIndex)
	}
	fmt.Fprintln(out)
	for _, child := range n.ChildrenIndices {
		if err := printNode(out, p, nodes, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func newSkeletonCommand(flags *globalFlags) *cobra.Command {
	var skin int
	cmd := &cobra.Command{
		Use:   "skeleton <file>",
		Short: "Print the bones of a skin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags)
			if err != nil {
				return err
			}
			defer s.log.Sync()

			p, err := s.parse(args[0])
			if err != nil {
				return err
			}
			skeleton, err := p.BuildSkeleton(skin, s.cfg.SkeletonConfig())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "skin %d: %d bones, %d sockets\n", skin, len(skeleton.Bones), len(skeleton.Sockets))
			for i, b := range skeleton.Bones {
				t := b.LocalTransform.Translation
				fmt.Fprintf(out, "%3d %-32s node=%-4d parent=%-4d t=(%.4f, %.4f, %.4f)\n",
					i, b.Name, b.NodeIndex, b.ParentIndex, t[0], t[1], t[2])
			}
			for _, sock := range skeleton.Sockets {
				fmt.Fprintf(out, "socket %s -> %s\n", sock.Name, sock.BoneName)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&skin, "skin", 0, "skin index")
	return cmd
}

func newAnimationCommand(flags *globalFlags) *cobra.Command {
	var (
		anim   int
		name   string
		skin   int
		sample float32
	)
	cmd := &cobra.Command{
		Use:   "animation <file>",
		Short: "Print the tracks of an animation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags)
			if err != nil {
				return err
			}
			defer s.log.Sync()

			p, err := s.parse(args[0])
			if err != nil {
				return err
			}
			if name != "" {
				if anim = p.FindAnimationByName(name); anim == model.NoIndex {
					return fmt.Errorf("no animation named %q", name)
				}
			}

			animConfig := s.cfg.AnimationConfig()
			if skin >= 0 {
				if animConfig.Skeleton, err = p.BuildSkeleton(skin, s.cfg.SkeletonConfig()); err != nil {
					return err
				}
			}
			clip, err := p.BuildAnimationTracks(anim, animConfig)
			if err != nil {
				return err
			}

			at := cmd.Flags().Changed("time")
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: duration=%.3fs frames=%d channels=%d\n", clip.Name, clip.Duration, clip.NumFrames, len(clip.Channels))
			for _, ch := range clip.Channels {
				fmt.Fprintf(out, "  %-32s node=%-4d frames=%d", ch.BoneName, ch.NodeIndex, ch.Frames())
				if at {
					rest := common.IdentityTransform()
					if node, err := p.LoadNode(ch.NodeIndex); err == nil {
						rest = node.Transform
					}
					t := ch.Sample(sample, rest).Translation
					fmt.Fprintf(out, " t(%.3f)=(%.4f, %.4f, %.4f)", sample, t[0], t[1], t[2])
				}
				fmt.Fprintln(out)
			}
			if clip.RootMotion != nil {
				fmt.Fprintf(out, "root motion removed from node %d (%d translation, %d rotation deltas)\n",
					clip.RootMotion.NodeIndex, len(clip.RootMotion.TranslationDeltas), len(clip.RootMotion.RotationDeltas))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&anim, "anim", 0, "animation index")
	cmd.Flags().StringVar(&name, "name", "", "animation name (overrides --anim)")
	cmd.Flags().IntVar(&skin, "skin", -1, "restrict channels to this skin's skeleton")
	cmd.Flags().Float32Var(&sample, "time", 0, "sample every channel at this time")
	return cmd
}

func newBatchCommand(flags *globalFlags) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "batch <files...>",
		Short: "Import files concurrently and report per-file counts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags)
			if err != nil {
				return err
			}
			defer s.log.Sync()

			var prof *profiler.Profiler
			if flags.profile {
				prof = profiler.NewProfiler(s.log.SugaredLogger)
			}
			if workers <= 0 {
				workers = s.cfg.Workers
			}

			lib := loader.NewLoader(loader.BackendTypeGLTF,
				loader.WithImportConfig(s.cfg.ImportConfig()),
				loader.WithParserOptions(s.cfg.ParserOptions()...),
				loader.WithLoaderLogger(s.log.SugaredLogger),
				loader.WithProfiler(prof),
				loader.WithWorkers(workers),
			)
			models, loadErr := lib.LoadAll(args)

			out := cmd.OutOrStdout()
			for _, path := range args {
				m, ok := models[path]
				if !ok {
					continue
				}
				fmt.Fprintf(out, "%s: nodes=%d meshes=%d skinned=%t animations=%d skipped=%d\n",
					path, len(m.Nodes()), len(m.Meshes()), m.Skinned(), m.AnimationCount(), len(multierr.Errors(m.Errors())))
			}
			for _, err := range multierr.Errors(loadErr) {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if prof != nil {
				prof.Report()
			}
			if loadErr != nil {
				return fmt.Errorf("%d of %d files failed", len(multierr.Errors(loadErr)), len(args))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent imports (default from config)")
	return cmd
}
