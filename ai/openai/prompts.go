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


package openai

import (
	"fmt"
	"time"

	"github.com/poiesic/machinerag/core"
	"github.com/tmc/langchaingo/llms/openai"
)

const intentPromptTemplate = `You route questions about industrial machines. Decide whether the user message
explicitly asks for live data and extract its parameters as JSON.

Be strict: assume no intent if in doubt.

Rules:
- "chart": the message clearly asks for a chart, trend, plot or graph of a measured value AND names an
  asset identifier (for example "urn:iff:asset:42").
- "alert": the message clearly asks for current alerts or alarms of a named asset identifier.
- "none": everything else, including greetings, general questions, and requests without an asset identifier.
- asset_ref: the asset identifier exactly as written, or "".
- metric: the measured property in lowercase singular form (for example "temperature"), or "".
- A relative period ("last 24h", "past 3 days") sets relative_value and relative_unit
  (one of minute, hour, day, week). Otherwise relative_value is 0 and relative_unit is "".
- Explicit dates set from and to as ISO 8601 instants. Otherwise both are "".
- Never invent dates. The current time is %s.

Output ONLY valid JSON, starting with { and ending with }. No preamble and no code fences.

Example:
Input: "show me the temperature trend for urn:iff:asset:42 over the last 24h"
Output:
{"intent":"chart","asset_ref":"urn:iff:asset:42","metric":"temperature","relative_value":24,"relative_unit":"hour","from":"","to":""}

Example:
Input: "any alarms on urn:iff:asset:7?"
Output:
{"intent":"alert","asset_ref":"urn:iff:asset:7","metric":"","relative_value":0,"relative_unit":"","from":"","to":""}

Example:
Input: "hello, how are you"
Output:
{"intent":"none","asset_ref":"","metric":"","relative_value":0,"relative_unit":"","from":"","to":""}`

// buildIntentPrompt creates the classifier system prompt anchored at now.
func buildIntentPrompt(now time.Time) string {
	return fmt.Sprintf(intentPromptTemplate, now.Format(time.RFC3339))
}

// intentResponseFormat is the strict structured output schema of the
// classifier. Every property is required; "" and 0 mean absent.
func intentResponseFormat() *openai.ResponseFormat {
	str := func(desc string) *openai.ResponseFormatJSONSchemaProperty {
		return &openai.ResponseFormatJSONSchemaProperty{Type: "string", Description: desc}
	}

	units := []interface{}{""}
	for _, u := range core.TimeUnits {
		units = append(units, string(u))
	}

	return &openai.ResponseFormat{
		Type: "json_schema",
		JSONSchema: &openai.ResponseFormatJSONSchema{
			Name:   "intent",
			Strict: true,
			Schema: &openai.ResponseFormatJSONSchemaProperty{
				Type: "object",
				Properties: map[string]*openai.ResponseFormatJSONSchemaProperty{
					"intent": {
						Type: "string",
						Enum: []interface{}{"chart", "alert", "none"},
					},
					"asset_ref": str("asset identifier or empty"),
					"metric":    str("measured property or empty"),
					"relative_value": {
						Type:        "integer",
						Description: "length of a relative period, 0 if absent",
					},
					"relative_unit": {
						Type: "string",
						Enum: units,
					},
					"from": str("ISO 8601 start instant or empty"),
					"to":   str("ISO 8601 end instant or empty"),
				},
				Required:             []string{"intent", "asset_ref", "metric", "relative_value", "relative_unit", "from", "to"},
				AdditionalProperties: false,
			},
		},
	}
}
