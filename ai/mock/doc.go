// Package mock provides deterministic implementations of the AI service interfaces.
//
// The types serve two purposes: test doubles with call counting and behavior
// injection, and an offline provider that lets the engine run without an
// OpenAI-compatible server.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedderWithDimension(8)
//	completer := mock.NewMockCompleter("canned answer")
//	classifier := mock.NewRuleClassifier(time.UTC)
//
//	intent, _ := classifier.Classify(ctx, "show me the temperature trend for urn:iff:asset:42 over the last 24h")
//	// intent: chart(urn:iff:asset:42, temperature, last 24 hour)
//
//	count := completer.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: unit vectors derived from a hash of the text
//   - MockCompleter: returns Reply and records every request
//   - RuleClassifier: keyword rules for chart and alert requests
//   - MockClassifier: fixed result for orchestrator tests
//   - MockProvider: aggregates embedder, completer and rule classifier
package mock
