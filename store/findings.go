package store

import (
	"encoding/json"

	"github.com/becomeliminal/analytics-core/model"
)

func marshalFindings(findings []model.Finding) ([]byte, error) {
	if findings == nil {
		findings = []model.Finding{}
	}
	return json.Marshal(findings)
}

func unmarshalFindings(data []byte) ([]model.Finding, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var findings []model.Finding
	if err := json.Unmarshal(data, &findings); err != nil {
		return nil, err
	}
	return findings, nil
}
