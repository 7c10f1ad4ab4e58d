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

package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/uptrace/bun"
)

var defaultRegistry = newModelRegistry()

// Model wraps a Bun-mapped struct for startup table initialization.
// Instance returns a struct pointer compatible with Bun; Priority controls
// creation order (lower values first), so referenced tables can be created
// before referencing ones.
type Model interface {
	Instance() interface{}
	Priority() int
}

type modelRegistry struct {
	models []Model
	mutex  sync.RWMutex
}

func newModelRegistry() *modelRegistry {
	return &modelRegistry{models: make([]Model, 0)}
}

func (r *modelRegistry) register(m Model) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.models = append(r.models, m)
}

func (r *modelRegistry) all() []Model {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	out := make([]Model, len(r.models))
	copy(out, r.models)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() < out[j].Priority()
	})
	return out
}

type modelAdapter struct {
	instance interface{}
	priority int
}

func (a *modelAdapter) Instance() interface{} { return a.instance }
func (a *modelAdapter) Priority() int         { return a.priority }

// RegisterModel adds a persistence model to the default registry.
func RegisterModel(instance interface{}, priority int) {
	defaultRegistry.register(&modelAdapter{instance: instance, priority: priority})
}

// RegisteredModels returns all registered models sorted by ascending
// priority.
func RegisteredModels() []Model {
	return defaultRegistry.all()
}

// RegisteredModelInstances returns the raw struct pointers of all registered
// models in priority order.
func RegisteredModelInstances() []interface{} {
	models := RegisteredModels()
	instances := make([]interface{}, len(models))
	for i, m := range models {
		instances[i] = m.Instance()
	}
	return instances
}

// CreateTables creates the tables of every registered model, in priority
// order, skipping tables that already exist.
func CreateTables(ctx context.Context, db *bun.DB) error {
	for _, m := range RegisteredModels() {
		if _, err := db.NewCreateTable().Model(m.Instance()).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", m.Instance(), err)
		}
	}
	return nil
}
