// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
)

// ValidateVectorRecord validates a VectorRecord before it is persisted.
//
// Validation rules:
//   - Embedding must not be empty
//   - When dim > 0 the embedding length must equal dim
//   - The text label must not be empty
func ValidateVectorRecord(record *VectorRecord, dim int) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidVectorRecord)
	}

	if len(record.Embedding) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidVectorRecord, ErrEmptyEmbedding)
	}

	if dim > 0 && len(record.Embedding) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(record.Embedding), dim)
	}

	if record.Labels[LabelText] == "" {
		return fmt.Errorf("%w: %w", ErrInvalidVectorRecord, ErrEmptyContent)
	}

	return nil
}

// ValidateChatTurn validates a ChatTurn according to domain rules.
func ValidateChatTurn(turn ChatTurn) error {
	if err := ValidateRole(turn.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChatTurn, err)
	}
	if turn.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChatTurn, ErrEmptyContent)
	}
	return nil
}

// ValidateRole validates that a Role has a known value.
func ValidateRole(role Role) error {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return nil
	}
	return fmt.Errorf("%w: value %q", ErrInvalidRole, role)
}

// LastUserTurn returns the content of the most recent user turn.
func LastUserTurn(turns []ChatTurn) (string, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			return turns[i].Content, true
		}
	}
	return "", false
}
