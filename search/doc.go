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


// Package search provides semantic retrieval of grounding context.
//
// The Retriever embeds every user turn of a conversation as one query,
// asks the vector store for the nearest records and numbers the results
// [S1], [S2], ... in store order. Hit metadata is coerced into labels with
// CoerceLabels, so backends may return maps or JSON. BuildContext renders the
// sources into the context block handed to the completion service.
package search
