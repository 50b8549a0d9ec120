package crawlerdriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_SuccessOnCleanExitWithState(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, Classify(0, "crawl finished, 120 pages", true))
}

func TestClassify_CleanExitWithoutStateFileIsCrawlFailure(t *testing.T) {
	assert.Equal(t, OutcomeCrawlFailure, Classify(0, "", false))
}

func TestClassify_ExUsageIsConfigError(t *testing.T) {
	assert.Equal(t, OutcomeConfigError, Classify(64, "", false))
}

func TestClassify_ConfigLogPatternWinsOverExitCode(t *testing.T) {
	assert.Equal(t, OutcomeConfigError, Classify(1, "Error: unrecognized arguments: --bogus", false))
}

func TestClassify_InfraLogPattern(t *testing.T) {
	assert.Equal(t, OutcomeInfraError, Classify(1, "dial tcp: no route to host", false))
}

func TestClassify_InfraPatternCaseInsensitive(t *testing.T) {
	assert.Equal(t, OutcomeInfraError, Classify(1, "NO SPACE LEFT ON DEVICE", false))
}

func TestClassify_PlainFailureFallsThrough(t *testing.T) {
	assert.Equal(t, OutcomeCrawlFailure, Classify(1, "panic: runtime error: index out of range", false))
}

func TestClassify_ConfigPatternBeatsInfraPattern(t *testing.T) {
	assert.Equal(t, OutcomeConfigError, Classify(1, "invalid argument, also no route to host", false))
}
