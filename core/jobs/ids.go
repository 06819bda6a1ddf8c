package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewResearchID mints a research job id of the form job_<unix>_<hex8>.
func NewResearchID() string {
	return fmt.Sprintf("job_%d_%s", time.Now().Unix(), uuid.New().String()[:8])
}

// NewAnalysisID mints an analysis job id of the form analysis_<unix>_<hex8>.
func NewAnalysisID() string {
	return fmt.Sprintf("analysis_%d_%s", time.Now().Unix(), uuid.New().String()[:8])
}
