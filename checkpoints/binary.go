package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// saveBinary saves checkpoint as a protobuf-encoded structure. The JSON field
// names double as the structure keys, so the two formats stay interchangeable.
func (cs *CheckpointSaver) saveBinary(checkpoint *Checkpoint, path string) error {
	ensureMetadata(checkpoint)

	fields, err := checkpointToMap(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to convert checkpoint: %v", err)
	}

	message, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("failed to build checkpoint message: %v", err)
	}

	data, err := proto.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %v", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %v", err)
	}

	return nil
}

// loadBinary loads checkpoint from the protobuf binary format
func (cs *CheckpointSaver) loadBinary(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %v", err)
	}

	var message structpb.Struct
	if err := proto.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %v", err)
	}

	raw, err := json.Marshal(message.AsMap())
	if err != nil {
		return nil, fmt.Errorf("failed to convert checkpoint message: %v", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(raw, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}

	return &checkpoint, nil
}

// checkpointToMap flattens a checkpoint into the generic field map structpb expects.
func checkpointToMap(checkpoint *Checkpoint) (map[string]interface{}, error) {
	raw, err := json.Marshal(checkpoint)
	if err != nil {
		return nil, err
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	return fields, nil
}
