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


// Package query routes one conversation turn to live data or to grounded
// answer synthesis.
//
// Orchestrator.Answer classifies the last user turn once and then takes the
// first matching path:
//
//  1. chart intent with a resolvable window: time-series readings, returned
//     directly with summary statistics
//  2. alert intent: the asset's live alerts, returned directly
//  3. otherwise: semantic retrieval, then one completion call with the
//     retrieved context and the most recent turns
//
// Live data paths never call the completion service. Classifier, resolver
// and retrieval failures degrade to the next path or to empty results; only
// a failed completion call is returned as an error.
package query
