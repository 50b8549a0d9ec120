package models

// JobConfig is the closed, typed replacement for the opaque config
// dictionary: seeds, crawler tool options, and campaign metadata. It is
// the single source of truth for reconstructing the crawler command
// line and is stored as JSON in the job row's config column.
type JobConfig struct {
	// Seeds is the required list of starting URLs.
	Seeds []string `json:"seeds"`

	ToolOptions ToolOptions `json:"tool_options"`

	CampaignKind string `json:"campaign_kind,omitempty"`
	CampaignYear int    `json:"campaign_year,omitempty"`

	// IncludeNon2xx, when set, makes the indexing pipeline accept
	// non-2xx HTML records instead of skipping them.
	IncludeNon2xx bool `json:"include_non_2xx,omitempty"`

	// AutoDedupe runs the optional same-day dedup pass with --apply
	// immediately after indexing. It is set per job; there is no
	// process-wide switch for it.
	AutoDedupe bool `json:"auto_dedupe,omitempty"`
}

// ToolOptions is the crawler's recognized, non-exhaustive option set,
// every field optional with a documented default applied by
// BuildCommandLine in internal/crawlerconfig.
type ToolOptions struct {
	InitialWorkers   *int    `json:"initial_workers,omitempty"`
	AdaptiveWorkers  *bool   `json:"adaptive_workers,omitempty"`
	DockerShmSize    string  `json:"docker_shm_size,omitempty"`
	DockerMemoryLimit string `json:"docker_memory_limit,omitempty"`
	DockerCPULimit   string  `json:"docker_cpu_limit,omitempty"`

	StallTimeoutMinutes  *int `json:"stall_timeout_minutes,omitempty"`
	MaxContainerRestarts *int `json:"max_container_restarts,omitempty"`
	ErrorThresholdTimeout *int `json:"error_threshold_timeout,omitempty"`
	ErrorThresholdHTTP    *int `json:"error_threshold_http,omitempty"`
	BackoffDelayMinutes   *int `json:"backoff_delay_minutes,omitempty"`

	ScopeRules     []string `json:"scope_rules,omitempty"`
	SkipFinalBuild *bool    `json:"skip_final_build,omitempty"`
	RelaxPerms     *bool    `json:"relax_perms,omitempty"`

	Monitoring   *bool `json:"monitoring,omitempty"`
	VPNRotation  *bool `json:"vpn_rotation,omitempty"`
}

// Default tool option values, applied wherever a *T field is nil.
const (
	DefaultInitialWorkers      = 1
	DefaultStallTimeoutMinutes = 30
)

// WithDefaults returns a copy of o with every unset optional field
// filled with its documented default.
func (o ToolOptions) WithDefaults() ToolOptions {
	result := o
	if result.InitialWorkers == nil {
		v := DefaultInitialWorkers
		result.InitialWorkers = &v
	}
	if result.StallTimeoutMinutes == nil {
		v := DefaultStallTimeoutMinutes
		result.StallTimeoutMinutes = &v
	}
	return result
}
