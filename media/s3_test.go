// Copyright 2025 AI Farm
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

package media

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKeyIsTenantScoped(t *testing.T) {
	key := ObjectKey("AI_FARM_user_u123", "animal-1", "front.jpg")
	assert.Equal(t, "AI_FARM_user_u123/livestock/animal-1/front.jpg", key)

	// Different tenants never share a prefix.
	other := ObjectKey("AI_FARM_user_u456", "animal-1", "front.jpg")
	assert.NotEqual(t, key, other)
	assert.NotContains(t, other, "u123")
}

func TestObjectKeyDefaultsFilename(t *testing.T) {
	key := ObjectKey("AI_FARM_user_u123", "animal-1", "")
	assert.Equal(t, "AI_FARM_user_u123/livestock/animal-1/photo", key)
}

func TestObjectKeyStripsPathTraversal(t *testing.T) {
	key := ObjectKey("AI_FARM_user_u123", "animal-1", "../../secret")
	assert.NotContains(t, key, "..")
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
