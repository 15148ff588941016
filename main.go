package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"blocksim/api"
	"blocksim/consensus"
	"blocksim/logger"
	"blocksim/network"
	"blocksim/sim"
	"blocksim/store"
)

var log = logger.Logger

func main() {
	app := &cli.App{
		Name:        "blocksim",
		Usage:       "Block propagation simulator",
		Description: "Runs a discrete event simulation of block minting and propagation over a regional network topology, then reports the average propagation delay matrix",
		Version:     "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "nodes",
				Aliases: []string{"n"},
				Value:   60,
				Usage:   "number of simulated nodes",
			},
			&cli.IntFlag{
				Name:  "degree",
				Value: 8,
				Usage: "relay links per node",
			},
			&cli.Uint64Flag{
				Name:  "stop-height",
				Value: 100,
				Usage: "stop once a block at this height arrives (0 = run until idle)",
			},
			&cli.Int64Flag{
				Name:  "interval",
				Value: 1000000,
				Usage: "target block interval in virtual microseconds",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Value: 1,
				Usage: "seed for topology and minting randomness",
			},
			&cli.StringFlag{
				Name:  "policy",
				Value: "roundrobin",
				Usage: "minting policy: roundrobin or exponential",
			},
			&cli.Int64Flag{
				Name:  "min-power",
				Value: 10,
				Usage: "lower bound of per-node mining power",
			},
			&cli.Int64Flag{
				Name:  "max-power",
				Value: 100,
				Usage: "upper bound of per-node mining power",
			},
			&cli.Int64Flag{
				Name:  "flat-latency",
				Value: 0,
				Usage: "replace the regional model with one uniform link delay in virtual microseconds (0 keeps the regions)",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Value:   "propagation-matrix.txt",
				Usage:   "file for the propagation delay matrix (empty skips the file)",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Value: "",
				Usage: "archive the finished run under this directory",
			},
			&cli.StringFlag{
				Name:  "serve",
				Value: "",
				Usage: "serve run results on this port after the run finishes",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Value: "",
				Usage: "log to this file instead of stdout only",
			},
		},
		Action: runSimulation,
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("Application failed")
	}
}

// buildPolicy maps the policy flag to a minting policy.
func buildPolicy(name string, numNodes int, rng *rand.Rand) (consensus.SchedulingPolicy, error) {
	switch name {
	case "roundrobin":
		return consensus.NewRoundRobin(numNodes), nil
	case "exponential":
		return consensus.NewExponential(rng), nil
	default:
		return nil, fmt.Errorf("unknown minting policy %q (want roundrobin or exponential)", name)
	}
}

// writeMatrixFile dumps the propagation delay matrix to path.
func writeMatrixFile(simr *sim.Simulator, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create matrix file: %w", err)
	}
	if err := simr.WriteMatrix(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write matrix: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close matrix file: %w", err)
	}
	return nil
}

func runSimulation(c *cli.Context) error {
	if err := logger.Configure(c.String("log-level"), c.String("log-file")); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	seed := c.Int64("seed")
	rng := rand.New(rand.NewSource(seed))

	policyName := c.String("policy")
	policy, err := buildPolicy(policyName, c.Int("nodes"), rng)
	if err != nil {
		return err
	}

	cfg := network.Config{
		Nodes:          c.Int("nodes"),
		Degree:         c.Int("degree"),
		MinPower:       c.Int64("min-power"),
		MaxPower:       c.Int64("max-power"),
		TargetInterval: c.Int64("interval"),
	}
	if flat := c.Int64("flat-latency"); flat > 0 {
		cfg.Regions = []string{"FLAT"}
		cfg.Latency = [][]int64{{flat}}
	}

	log.WithFields(logrus.Fields{
		"nodes":      cfg.Nodes,
		"degree":     cfg.Degree,
		"stopHeight": c.Uint64("stop-height"),
		"interval":   cfg.TargetInterval,
		"policy":     policyName,
		"seed":       seed,
	}).Info("Simulation run started")

	sched := sim.NewScheduler()
	simr := sim.NewSimulator(sched)

	topo, err := network.Build(cfg, sched, simr, rng, policy)
	if err != nil {
		return fmt.Errorf("failed to build topology: %w", err)
	}
	topo.Bootstrap()

	start := time.Now()
	tasks := sim.RunUntil(sched, simr, c.Uint64("stop-height"))
	simr.FlushAll()
	elapsed := time.Since(start)

	head := simr.BestHead()
	stats := simr.Stats()

	run := store.RunRecord{
		ID:             uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		Seed:           seed,
		Policy:         policyName,
		Nodes:          cfg.Nodes,
		Degree:         cfg.Degree,
		TargetInterval: cfg.TargetInterval,
		StopHeight:     c.Uint64("stop-height"),
		VirtualTime:    sched.Now(),
		TasksExecuted:  tasks,
	}
	if head != nil {
		run.BestHeight = head.Height()
		run.BestHash = head.Hash().String()
	}

	mintCounts := make(map[int]int64)
	for _, st := range stats {
		mintCounts[st.NodeID] = st.MintCount
	}
	for _, n := range topo.Nodes() {
		run.NodeStats = append(run.NodeStats, store.NodeRecord{
			ID:          n.NodeID(),
			Region:      n.Region(),
			MiningPower: n.MiningPower(),
			MintCount:   mintCounts[n.NodeID()],
		})
	}
	matrix := store.NewMatrixRecord(run.ID, simr.NodeIDs(), stats)

	log.WithFields(logrus.Fields{
		"runId":       run.ID,
		"tasks":       tasks,
		"virtualTime": run.VirtualTime,
		"bestHeight":  run.BestHeight,
		"bestHash":    run.BestHash,
		"elapsed":     elapsed.String(),
	}).Info("Propagation run complete")

	if out := c.String("out"); out != "" {
		if err := writeMatrixFile(simr, out); err != nil {
			return err
		}
		log.WithField("path", out).Info("Propagation delay matrix written")
	}

	if dataDir := c.String("data-dir"); dataDir != "" {
		archive, err := store.Open(dataDir)
		if err != nil {
			return err
		}
		if err := archive.SaveRun(run, matrix, head); err != nil {
			archive.Close()
			return err
		}
		if err := archive.Close(); err != nil {
			return fmt.Errorf("failed to close run archive: %w", err)
		}
	}

	if port := c.String("serve"); port != "" {
		live, err := api.NewLiveResults(run, matrix, head)
		if err != nil {
			return err
		}
		server := api.NewServer(port, live)

		go func() {
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			sig := <-sigChan
			log.WithField("signal", sig).Info("Received shutdown signal")

			if err := server.Stop(); err != nil {
				log.WithError(err).Error("Error stopping server")
			}
		}()

		log.WithField("port", port).Info("Serving run results...")
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start results server: %w", err)
		}
	}

	return nil
}
