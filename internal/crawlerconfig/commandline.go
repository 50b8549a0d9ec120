// Package crawlerconfig turns a models.JobConfig into the crawler
// subprocess's command-line arguments. BuildCommandLine is a pure
// function kept separate from process supervision and exit
// classification (both in internal/crawlerdriver) so it is unit
// testable without spawning anything.
package crawlerconfig

import (
	"fmt"
	"strconv"

	"github.com/jonesrussell/healtharchive/internal/models"
)

// BuildCommandLine translates cfg into the argv passed to the crawler
// binary: name and output_dir are threaded through explicitly since the
// driver derives them (job name, resolved output directory) rather than
// trusting whatever the caller put in config.
func BuildCommandLine(cfg models.JobConfig, seeds []string, name, outputDir string) ([]string, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("build command line: no seeds")
	}

	opts := cfg.ToolOptions.WithDefaults()

	args := []string{
		"--name", name,
		"--output-dir", outputDir,
	}
	for _, seed := range seeds {
		args = append(args, "--seeds", seed)
	}

	args = append(args, "--initial-workers", strconv.Itoa(*opts.InitialWorkers))
	if opts.AdaptiveWorkers != nil && *opts.AdaptiveWorkers {
		args = append(args, "--adaptive-workers")
	}
	if opts.DockerShmSize != "" {
		args = append(args, "--docker-shm-size", opts.DockerShmSize)
	}
	if opts.DockerMemoryLimit != "" {
		args = append(args, "--docker-memory-limit", opts.DockerMemoryLimit)
	}
	if opts.DockerCPULimit != "" {
		args = append(args, "--docker-cpu-limit", opts.DockerCPULimit)
	}

	args = append(args, "--stall-timeout-minutes", strconv.Itoa(*opts.StallTimeoutMinutes))
	if opts.MaxContainerRestarts != nil {
		args = append(args, "--max-container-restarts", strconv.Itoa(*opts.MaxContainerRestarts))
	}
	if opts.ErrorThresholdTimeout != nil {
		args = append(args, "--error-threshold-timeout", strconv.Itoa(*opts.ErrorThresholdTimeout))
	}
	if opts.ErrorThresholdHTTP != nil {
		args = append(args, "--error-threshold-http", strconv.Itoa(*opts.ErrorThresholdHTTP))
	}
	if opts.BackoffDelayMinutes != nil {
		args = append(args, "--backoff-delay-minutes", strconv.Itoa(*opts.BackoffDelayMinutes))
	}

	for _, rule := range opts.ScopeRules {
		args = append(args, "--scope", rule)
	}
	if opts.SkipFinalBuild != nil && *opts.SkipFinalBuild {
		args = append(args, "--skip-final-build")
	}
	if opts.RelaxPerms != nil && *opts.RelaxPerms {
		args = append(args, "--relax-perms")
	}
	if opts.Monitoring != nil && *opts.Monitoring {
		args = append(args, "--monitoring")
	}
	if opts.VPNRotation != nil && *opts.VPNRotation {
		args = append(args, "--vpn-rotation")
	}

	return args, nil
}
