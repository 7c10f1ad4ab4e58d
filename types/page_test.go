/*
 * Copyright 2025 tessera-db.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tessera-db/tessera/types"
)

func TestPageRequestDefaults(t *testing.T) {
	req := types.NewPageRequest(0, 0)
	assert.Equal(t, 1, req.Page())
	assert.Equal(t, 10, req.PageSize())
	assert.Equal(t, 0, req.Offset())
	assert.Empty(t, req.Orders())
}

func TestPageRequestOffset(t *testing.T) {
	req := types.NewPageRequest(3, 20, "name DESC")
	assert.Equal(t, 3, req.Page())
	assert.Equal(t, 20, req.PageSize())
	assert.Equal(t, 40, req.Offset())
	assert.Equal(t, []string{"name DESC"}, req.Orders())
}

func TestPageRequestOptions(t *testing.T) {
	opts := types.NewPageRequest(2, 5, "id").Options()
	assert.Equal(t, 5, opts.Offset)
	assert.Equal(t, 5, opts.Limit)
	assert.Equal(t, []string{"id"}, opts.Order)
}

func TestNewPagination(t *testing.T) {
	page := types.NewPagination[string](2, 5)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 5, page.PageSize)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}
