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


// Package search answers natural-language queries against a vector index.
//
// The Engine embeds the query with the same embedder that built the index,
// retrieves the closest passages by squared Euclidean distance and joins
// their texts, in ranked order, into a context string. Answer renders the
// query and context into a prompt and hands it to an ai.Synthesizer.
//
// When no passage is retrieved the synthesizer is not called; Answer
// returns a fixed "no relevant information" reply with Sentinel set.
package search
