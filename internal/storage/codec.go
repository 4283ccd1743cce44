package storage

import (
	"encoding/json"
	"errors"

	"dimcascade/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeBatch(batch model.BatchResult) ([]byte, error) {
	return json.Marshal(batch)
}

func DecodeBatch(data []byte) (model.BatchResult, error) {
	var batch model.BatchResult
	if err := json.Unmarshal(data, &batch); err != nil {
		return model.BatchResult{}, err
	}
	if err := checkVersion(batch.VersionedRecord); err != nil {
		return model.BatchResult{}, err
	}
	return batch, nil
}

func EncodeRunSummary(summary model.RunSummary) ([]byte, error) {
	return json.Marshal(summary)
}

func DecodeRunSummary(data []byte) (model.RunSummary, error) {
	var summary model.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return model.RunSummary{}, err
	}
	if err := checkVersion(summary.VersionedRecord); err != nil {
		return model.RunSummary{}, err
	}
	return summary, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
