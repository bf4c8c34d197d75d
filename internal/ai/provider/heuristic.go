package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Lideeyah/DevAssist-sub000/internal/ai/prompt"
)

// heuristicDelay makes locally generated answers feel like a model call
// rather than an instant template dump.
const heuristicDelay = 300 * time.Millisecond

// Heuristic produces code skeletons without any network dependency. It
// classifies the request by keyword, extracts names from the prompt
// text, and fills in a matching template. Output quality is deliberately
// modest; its job is keeping the service useful when every remote model
// is down.
type Heuristic struct{}

// NewHeuristic returns the local template generator.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Generate classifies the prompt and renders the matching template. The
// artificial delay respects cancellation but the final template is still
// returned when the context expires mid-wait, since callers treat the
// heuristic as the last real producer before the mock.
func (h *Heuristic) Generate(ctx context.Context, userPrompt, mode string) string {
	select {
	case <-time.After(heuristicDelay):
	case <-ctx.Done():
	}

	if mode == prompt.ModeExplain {
		return h.explain(userPrompt)
	}

	lower := strings.ToLower(userPrompt)
	switch {
	case containsAny(lower, "component", "react", "jsx"):
		return reactComponentTemplate(extractComponentName(userPrompt))
	case containsAny(lower, "endpoint", "route", "api", "express"):
		return expressRouteTemplate(extractHTTPMethod(lower), extractResourceName(lower))
	case containsAny(lower, "schema", "model", "mongoose", "database"):
		return mongooseSchemaTemplate(extractComponentName(userPrompt))
	case containsAny(lower, "class"):
		return classTemplate(extractComponentName(userPrompt))
	case containsAny(lower, "function", "method", "helper"):
		return functionTemplate(extractFunctionName(lower))
	default:
		return genericTemplate(userPrompt)
	}
}

func (h *Heuristic) explain(userPrompt string) string {
	return fmt.Sprintf(`Here is a breakdown of what you asked about:

%q

1. Identify the entry point and follow the data flow from there.
2. Check how inputs are validated before they are used.
3. Look at error paths: what happens when a call fails halfway through.
4. Note any shared state and whether access to it is synchronized.

For a more detailed explanation, include the relevant source files in
your project so they can be used as context.`, truncate(userPrompt, 200))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// extractComponentName scans for a capitalized word that is not a common
// English sentence starter. Falls back to "MyComponent".
func extractComponentName(userPrompt string) string {
	skip := map[string]bool{
		"Create": true, "Build": true, "Make": true, "Write": true,
		"Add": true, "Generate": true, "Please": true, "The": true,
		"A": true, "An": true, "I": true,
	}
	for _, word := range strings.Fields(userPrompt) {
		word = strings.Trim(word, ".,!?\"'()")
		if len(word) < 2 || skip[word] {
			continue
		}
		if word[0] >= 'A' && word[0] <= 'Z' {
			return word
		}
	}
	return "MyComponent"
}

// extractFunctionName looks for "function <name>" or a camelCase word.
func extractFunctionName(lower string) string {
	fields := strings.Fields(lower)
	for i, word := range fields {
		if (word == "function" || word == "method" || word == "called" || word == "named") && i+1 < len(fields) {
			name := strings.Trim(fields[i+1], ".,!?\"'()")
			if name != "" && name != "that" && name != "to" {
				return name
			}
		}
	}
	return "doWork"
}

func extractHTTPMethod(lower string) string {
	for _, m := range []string{"get", "post", "put", "patch", "delete"} {
		if strings.Contains(lower, m+" ") || strings.Contains(lower, m+"s ") {
			return m
		}
	}
	return "get"
}

func extractResourceName(lower string) string {
	skip := map[string]bool{
		"endpoint": true, "route": true, "api": true, "rest": true,
		"express": true, "http": true, "json": true, "that": true,
		"with": true, "create": true, "build": true, "make": true,
		"write": true, "add": true, "post": true, "patch": true,
		"delete": true, "lists": true, "list": true, "returns": true,
	}
	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,!?\"'()/")
		if len(word) > 3 && !skip[word] && isAlpha(word) {
			return word
		}
	}
	return "items"
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func reactComponentTemplate(name string) string {
	return fmt.Sprintf(`import React, { useState } from 'react';

function %[1]s({ title }) {
  const [loading, setLoading] = useState(false);

  return (
    <div className="%[2]s">
      <h2>{title}</h2>
      {loading ? <p>Loading...</p> : <p>%[1]s content goes here.</p>}
    </div>
  );
}

export default %[1]s;`, name, strings.ToLower(name))
}

func expressRouteTemplate(method, resource string) string {
	return fmt.Sprintf(`const express = require('express');
const router = express.Router();

router.%[1]s('/%[2]s', async (req, res) => {
  try {
    // TODO: replace with real data access for %[2]s
    const result = [];
    res.json({ data: result });
  } catch (err) {
    console.error(err);
    res.status(500).json({ error: 'Internal server error' });
  }
});

module.exports = router;`, method, resource)
}

func mongooseSchemaTemplate(name string) string {
	return fmt.Sprintf(`const mongoose = require('mongoose');

const %[2]sSchema = new mongoose.Schema({
  name: { type: String, required: true, trim: true },
  description: { type: String, default: '' },
  createdAt: { type: Date, default: Date.now },
});

module.exports = mongoose.model('%[1]s', %[2]sSchema);`, name, strings.ToLower(name))
}

func classTemplate(name string) string {
	return fmt.Sprintf(`class %[1]s {
  constructor(options = {}) {
    this.options = options;
  }

  init() {
    // initialization logic for %[1]s
  }
}

module.exports = %[1]s;`, name)
}

func functionTemplate(name string) string {
	return fmt.Sprintf(`/**
 * %[1]s performs the requested operation.
 * @param {Object} input
 * @returns {Object}
 */
function %[1]s(input) {
  if (input == null) {
    throw new Error('input is required');
  }
  // TODO: implement %[1]s
  return { ok: true };
}

module.exports = %[1]s;`, name)
}

func genericTemplate(userPrompt string) string {
	return fmt.Sprintf(`// Request: %s
// A starting skeleton; adapt it to your project's structure.

function main() {
  // 1. Parse and validate inputs
  // 2. Perform the core operation
  // 3. Return or render the result
}

main();`, truncate(userPrompt, 120))
}
