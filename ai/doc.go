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


// Package ai provides abstractions for the model-backed services used by docrag.
//
// Two services are involved in answering a question:
//
//   - Embedder: maps passages and queries to fixed-dimension vectors
//   - Synthesizer: turns a prompt carrying the query and retrieved context into an answer
//
// AIProvider owns one instance of each for the lifetime of the process. The
// embedding model is expensive to load, so it is loaded once when the
// provider is constructed and released by Close.
//
// # Implementation Packages
//
//   - ai/fastembed: local ONNX sentence-transformer embeddings (requires cgo)
//   - ai/openai: OpenAI-compatible embeddings and chat completions
//   - ai/mock: deterministic test doubles
//
// Public constructors return interface types. Mock constructors return
// concrete types so tests can inject behavior and inspect call counts.
//
// # Usage Example
//
//	cfg := ai.DefaultConfig()
//	provider, err := fastembed.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "What is the capital of France?")
package ai
