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

package repository

import (
	"github.com/tessera-db/tessera/types"
)

// DomainModel is the value object exchanged with callers. Implementations
// expose their identifier and serialize themselves into a plain attribute
// mapping keyed by persistence column names.
type DomainModel interface {
	Identifier() any
	DumpAttrs() types.Attrs
}

// Loadable ties a domain model pointer type to its validate-from-mapping
// constructor. LoadAttrs must validate and coerce the given mapping; a model
// that fails validation returns an error and is never handed to callers.
//
// The persistence side of a binding needs no interface: entity name and
// identifier column are read from the Bun schema metadata of the model
// struct, which the factory asserts at construction time.
type Loadable[D any] interface {
	*D
	DomainModel
	LoadAttrs(attrs types.Attrs) error
}
