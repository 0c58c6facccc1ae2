// Package id provides unique identifier generation for jobs.
package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generate creates a new unique job ID.
// Format: job-<timestamp>-<random hex>
// Example: job-1701432000-a1b2c3d4e5f6
func Generate() string {
	timestamp := time.Now().Unix()
	u, err := uuid.NewRandom()
	if err != nil {
		// Fallback to timestamp only if the random source fails
		return fmt.Sprintf("job-%d", timestamp)
	}
	random := strings.ReplaceAll(u.String(), "-", "")[:12]
	return fmt.Sprintf("job-%d-%s", timestamp, random)
}
