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


// Package timeseries resolves live machine readings for chart requests.
//
// SQLStore keeps readings in an entity_history table in SQLite:
//
//	entity_id   TEXT     asset reference, e.g. urn:iff:asset:42
//	attribute   TEXT     metric name or attribute URI
//	observed_at INTEGER  unix milliseconds, UTC
//	value       REAL
//
// A metric matches an attribute exactly, or as the last segment of an
// attribute URI ("temperature" matches "https://industry-fusion.org/base/v0.1/temperature").
//
// Degrading wraps any Resolver so that failures are logged and reported as
// an empty series. The query path treats an empty series as "no data".
package timeseries
