package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/go-playground/validator.v9"

	"github.com/cloudx-io/sealedbid/enclaveapi/parsing"
)

// LoadPCRsFromFile reads a PCRConfig file. Every set must carry the three
// measurements as hex.
func LoadPCRsFromFile(path string) ([]PCRSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read PCR config: %w", err)
	}

	var config PCRConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse PCR config: %w", err)
	}
	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid PCR config %s: %w", path, err)
	}
	for i := range config.PCRSets {
		set := &config.PCRSets[i]
		set.PCR0, set.PCR1, set.PCR2 = strings.ToLower(set.PCR0), strings.ToLower(set.PCR1), strings.ToLower(set.PCR2)
	}
	return config.PCRSets, nil
}

func (s PCRSet) matches(pcrs map[uint64][]byte) bool {
	return parsing.FormatPCR(pcrs[0]) == s.PCR0 &&
		parsing.FormatPCR(pcrs[1]) == s.PCR1 &&
		parsing.FormatPCR(pcrs[2]) == s.PCR2
}

// MatchPCRs returns the first known set the measurements match.
func MatchPCRs(pcrs map[uint64][]byte, known []PCRSet) (PCRSet, bool) {
	for _, set := range known {
		if set.matches(pcrs) {
			return set, true
		}
	}
	return PCRSet{}, false
}
