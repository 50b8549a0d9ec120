package crawlerdriver

import "strings"

// Outcome is the result of classifying a finished crawler subprocess.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeCrawlFailure Outcome = "crawl_failure"
	OutcomeInfraError   Outcome = "infra_error"
	OutcomeConfigError  Outcome = "config_error"
)

// exUsage is the sysexits.h EX_USAGE code the crawler binary returns
// for invalid arguments, alongside the log-pattern check — either one
// classifying as ConfigError.
const exUsage = 64

// infraLogPatterns is the data-driven rule set a finished crawl's log
// tail is checked against to distinguish an environmental failure from
// a genuine crawl failure. New patterns are added here as incidents
// surface them, not by touching the classifier's call sites.
var infraLogPatterns = []string{
	"transport endpoint is not connected",
	"errno 107",
	"connection reset by peer",
	"no route to host",
	"network is unreachable",
	"no space left on device",
	"stale file handle",
	"input/output error",
	"errno 5",
}

// configLogPatterns flags an exit as a configuration problem
// independent of the exit code, since not every crawler build returns
// exUsage for a bad flag.
var configLogPatterns = []string{
	"unrecognized arguments",
	"invalid argument",
}

// StateFile is the subset of .archive_state.json the classifier and
// the worker loop's index trigger care about.
type StateFile struct {
	PagesCrawled      int      `json:"pages_crawled"`
	ContainerRestarts int      `json:"container_restarts"`
	CurrentWorkers    int      `json:"current_workers"`
	LastProgressAt    string   `json:"last_progress_timestamp"`
	Stalled           bool     `json:"stalled"`
	TempDirs          []string `json:"temp_dirs"`
}

// Classify turns a finished crawler subprocess's exit code, log tail,
// and state-file presence into an Outcome: a config-error log pattern
// or exit code naming bad arguments wins first, then a clean exit with
// a present state file is Success, then an infra-error log pattern,
// else a plain CrawlFailure.
func Classify(exitCode int, logTail string, stateFilePresent bool) Outcome {
	lower := strings.ToLower(logTail)

	if matchesAny(lower, configLogPatterns) || exitCode == exUsage {
		return OutcomeConfigError
	}

	if exitCode == 0 && stateFilePresent {
		return OutcomeSuccess
	}

	if matchesAny(lower, infraLogPatterns) {
		return OutcomeInfraError
	}

	return OutcomeCrawlFailure
}

func matchesAny(haystack string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(haystack, p) {
			return true
		}
	}
	return false
}
