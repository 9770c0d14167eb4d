/*
mimpirun launches n cooperating MIMPI processes on the local host: one copy
of the given executable per rank, wired together by n*(n-1) unidirectional
pipes, with the group's size and each process's rank published through
environment variables the mimpi package's Init reads at startup.

	mimpirun 4 ./ring-example -verbose
	mimpirun --config run.yaml
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Froxyy-dev/MIMUW-MIMPI/mimpilog"
)

// runConfig is the resolved description of one launch, built either from
// positional arguments or from a --config YAML file.
type runConfig struct {
	Processes         int      `yaml:"processes"`
	Executable        string   `yaml:"executable"`
	Args              []string `yaml:"args"`
	DeadlockDetection bool     `yaml:"deadlock_detection"`
}

var (
	configPath   string
	initTimeout  time.Duration
	deadlockFlag bool
)

func main() {
	root := &cobra.Command{
		Use:   "mimpirun <n> <executable> [args...]",
		Short: "launch n cooperating MIMPI processes on the local host",
		Args:  cobra.ArbitraryArgs,
		RunE:  run,
	}
	// Everything after the executable belongs to it, not to mimpirun.
	root.Flags().SetInterspersed(false)
	root.Flags().StringVar(&configPath, "config", "", "YAML file describing the run (overrides positional args)")
	root.Flags().DurationVar(&initTimeout, "init-timeout", 0, "abort the launch if forking and wiring all children takes longer than this (0 disables)")
	root.Flags().BoolVar(&deadlockFlag, "deadlock-detection", false, "tell every child to enable deadlock detection")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(_ *cobra.Command, args []string) error {
	log := mimpilog.New(os.Stderr, -1)

	cfg, err := resolveConfig(args)
	if err != nil {
		return err
	}
	if cfg.Processes < 1 {
		return fmt.Errorf("mimpirun: process count must be positive, got %d", cfg.Processes)
	}

	group := newPipeGroup(cfg.Processes)
	defer group.closeAll()

	procs, err := spawnAll(cfg, group, log)
	if err != nil {
		return err
	}

	// The parent's own copies of every pipe end must close before waiting:
	// a child's read end only observes peer-closed once every writer,
	// including this process's now-unneeded duplicate, has closed.
	group.closeAll()

	return waitAll(procs, log)
}

// resolveConfig builds a runConfig from --config, if given, or from
// positional arguments (process count, executable, executable args).
func resolveConfig(args []string) (runConfig, error) {
	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return runConfig{}, fmt.Errorf("mimpirun: reading %s: %w", configPath, err)
		}
		var cfg runConfig
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return runConfig{}, fmt.Errorf("mimpirun: parsing %s: %w", configPath, err)
		}
		cfg.DeadlockDetection = cfg.DeadlockDetection || deadlockFlag
		return cfg, nil
	}

	if len(args) < 2 {
		return runConfig{}, fmt.Errorf("mimpirun: usage: mimpirun <n> <executable> [args...]")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return runConfig{}, fmt.Errorf("mimpirun: invalid process count %q: %w", args[0], err)
	}
	return runConfig{
		Processes:         n,
		Executable:        args[1],
		Args:              args[2:],
		DeadlockDetection: deadlockFlag,
	}, nil
}

// pipeGroup owns the n*(n-1) unidirectional pipes wiring every ordered pair
// of the n processes, indexed [receiver][sender] the way the launcher
// contract numbers them.
type pipeGroup struct {
	n     int
	read  [][]*os.File // read[receiver][sender], nil on the diagonal
	write [][]*os.File // write[receiver][sender], nil on the diagonal
}

func newPipeGroup(n int) *pipeGroup {
	g := &pipeGroup{n: n, read: make([][]*os.File, n), write: make([][]*os.File, n)}
	for i := range g.read {
		g.read[i] = make([]*os.File, n)
		g.write[i] = make([]*os.File, n)
	}
	return g
}

// open creates the n*(n-1) pipes, one per ordered (receiver, sender) pair.
func (g *pipeGroup) open() error {
	for receiver := 0; receiver < g.n; receiver++ {
		for sender := 0; sender < g.n; sender++ {
			if receiver == sender {
				continue
			}
			r, w, err := os.Pipe()
			if err != nil {
				return fmt.Errorf("mimpirun: creating pipe receiver=%d sender=%d: %w", receiver, sender, err)
			}
			g.read[receiver][sender] = r
			g.write[receiver][sender] = w
		}
	}
	return nil
}

// extraFilesFor builds rank's ExtraFiles slice: its n-1 read ends (one per
// sender, ascending) interleaved with its n-1 write ends (one per
// receiver, ascending), skipping itself — the same order env.go's readFD /
// writeFD assume when computing local descriptor numbers.
func (g *pipeGroup) extraFilesFor(rank int) []*os.File {
	files := make([]*os.File, 0, 2*(g.n-1))
	for peer := 0; peer < g.n; peer++ {
		if peer == rank {
			continue
		}
		files = append(files, g.read[rank][peer], g.write[peer][rank])
	}
	return files
}

func (g *pipeGroup) closeAll() {
	for receiver := 0; receiver < g.n; receiver++ {
		for sender := 0; sender < g.n; sender++ {
			if receiver == sender {
				continue
			}
			if f := g.read[receiver][sender]; f != nil {
				f.Close()
				g.read[receiver][sender] = nil
			}
			if f := g.write[receiver][sender]; f != nil {
				f.Close()
				g.write[receiver][sender] = nil
			}
		}
	}
}

// spawnAll opens the pipe group and starts one child per rank, using an
// errgroup so a single bad fork/exec aborts the whole launch promptly
// instead of leaving some ranks running with no peers.
func spawnAll(cfg runConfig, group *pipeGroup, log zerolog.Logger) ([]*exec.Cmd, error) {
	if err := group.open(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if initTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, initTimeout)
		defer cancel()
	}

	eg, gctx := errgroup.WithContext(ctx)
	procs := make([]*exec.Cmd, cfg.Processes)

	for rank := 0; rank < cfg.Processes; rank++ {
		rank := rank
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("mimpirun: aborting rank %d: %w", rank, err)
			}
			cmd := exec.Command(cfg.Executable, cfg.Args...)
			cmd.Stdin = os.Stdin
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			cmd.ExtraFiles = group.extraFilesFor(rank)
			cmd.Env = append(os.Environ(),
				fmt.Sprintf("MIMPI_SIZE=%d", cfg.Processes),
				fmt.Sprintf("MIMPI_RANK=%d", rank),
			)
			if cfg.DeadlockDetection {
				cmd.Env = append(cmd.Env, "MIMPI_DEADLOCK_DETECTION=1")
			}
			if err := cmd.Start(); err != nil {
				return fmt.Errorf("mimpirun: starting rank %d: %w", rank, err)
			}
			procs[rank] = cmd
			log.Info().Int("rank", rank).Int("pid", cmd.Process.Pid).Msg("child started")
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		for _, p := range procs {
			if p != nil && p.Process != nil {
				p.Process.Kill()
			}
		}
		return nil, err
	}
	return procs, nil
}

// waitAll joins every child, in parallel, returning the first non-nil exit
// error encountered (mirroring the original's bare wait(NULL) loop, but
// surfacing failures instead of silently discarding them).
func waitAll(procs []*exec.Cmd, log zerolog.Logger) error {
	var eg errgroup.Group
	for _, p := range procs {
		p := p
		eg.Go(func() error {
			err := p.Wait()
			log.Info().Int("pid", p.Process.Pid).Err(err).Msg("child exited")
			return err
		})
	}
	return eg.Wait()
}
