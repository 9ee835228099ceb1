package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"Scribe/pkg/types"
)

// ========================================
// Test Script Generator
// ========================================

// TestScriptGenerator turns a recorded session into a Playwright test
// script. The output is compiled in an embedded JS engine before it is
// handed back, so a syntactically broken script never leaves the app.
type TestScriptGenerator struct {
	store *ActionStore
}

func NewTestScriptGenerator(store *ActionStore) *TestScriptGenerator {
	return &TestScriptGenerator{store: store}
}

// GenerateTestScript builds and validates a script for one session.
func (g *TestScriptGenerator) GenerateTestScript(sessionID string) (*types.TestScriptResult, error) {
	session, err := g.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	actions, err := g.store.ListActions(sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load actions: %w", err)
	}

	script := g.buildScript(session, actions)
	result := &types.TestScriptResult{SessionID: sessionID, Script: script, Valid: true}

	if _, err := goja.Compile("generated.spec.js", script, false); err != nil {
		result.Valid = false
		result.Error = err.Error()
		LogWarn("testgen").Err(err).Str("sessionId", sessionID).Msg("Generated script failed validation")
	}

	LogInfo("testgen").
		Str("sessionId", sessionID).
		Int("actionCount", len(actions)).
		Bool("valid", result.Valid).
		Msg("Test script generated")

	return result, nil
}

func (g *TestScriptGenerator) buildScript(session *types.CaptureSession, actions []Action) string {
	var b strings.Builder

	b.WriteString("const { test, expect } = require('@playwright/test');\n\n")
	fmt.Fprintf(&b, "// Recorded %s\n", time.UnixMilli(session.StartTime).Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "test(%s, async ({ page }) => {\n", jsString(session.Name))
	if session.URL != "" {
		fmt.Fprintf(&b, "  await page.goto(%s);\n", jsString(session.URL))
	}

	var prevCompleted int64
	for i := range actions {
		a := actions[i]

		// Reproduce the recorded pacing between steps.
		if gap := a.Timestamp - prevCompleted; gap > 500 && i > 0 {
			fmt.Fprintf(&b, "  await page.waitForTimeout(%d);\n", gap)
		}
		// Actions from older stores carry no completion estimate; fall
		// back to the start timestamp so pacing still accrues.
		done := a.CompletedAt
		if done < a.Timestamp {
			done = a.Timestamp
		}
		if done > prevCompleted {
			prevCompleted = done
		}

		g.writeStep(&b, a)
	}

	b.WriteString("});\n")
	return b.String()
}

func (g *TestScriptGenerator) writeStep(b *strings.Builder, a Action) {
	loc := locatorExpr(a.Selector)

	switch a.Type {
	case ActionClick:
		if a.Intent != nil && a.Intent.Type != IntentGeneric {
			fmt.Fprintf(b, "  // %s\n", a.Intent.Type)
		}
		if loc == "" {
			b.WriteString("  // click target had no resolvable selector\n")
			return
		}
		if a.ClickCount > 1 {
			fmt.Fprintf(b, "  await %s.dblclick();\n", loc)
			return
		}
		if a.Button == "right" {
			fmt.Fprintf(b, "  await %s.click({ button: 'right' });\n", loc)
			return
		}
		fmt.Fprintf(b, "  await %s.click();\n", loc)
		if a.ExpectsNavigation != nil && *a.ExpectsNavigation {
			b.WriteString("  await page.waitForLoadState();\n")
		}

	case ActionInput:
		if loc == "" {
			return
		}
		value := jsString(a.Value)
		if a.IsSensitive && a.VariableName != "" {
			value = fmt.Sprintf("process.env.%s", a.VariableName)
		}
		fmt.Fprintf(b, "  await %s.fill(%s);\n", loc, value)

	case ActionSelect:
		if loc == "" {
			return
		}
		fmt.Fprintf(b, "  await %s.selectOption(%s);\n", loc, jsString(a.Value))

	case ActionMultiSelect:
		if loc == "" {
			return
		}
		parts := make([]string, len(a.Values))
		for i, v := range a.Values {
			parts[i] = jsString(v)
		}
		fmt.Fprintf(b, "  await %s.selectOption([%s]);\n", loc, strings.Join(parts, ", "))

	case ActionNavigation:
		if a.ToURL != "" {
			fmt.Fprintf(b, "  await page.goto(%s);\n", jsString(a.ToURL))
		}

	case ActionScroll:
		if a.ScrollTarget == "window" {
			fmt.Fprintf(b, "  await page.evaluate(() => window.scrollTo(%d, %d));\n", a.ScrollX, a.ScrollY)
		} else if loc != "" {
			fmt.Fprintf(b, "  await %s.evaluate((el) => el.scrollTo(%d, %d));\n", loc, a.ScrollX, a.ScrollY)
		}

	case ActionHover:
		if loc == "" {
			return
		}
		fmt.Fprintf(b, "  await %s.hover();\n", loc)
		if a.OpensDropdown && a.DropdownSelector != "" {
			fmt.Fprintf(b, "  await expect(page.locator(%s)).toBeVisible();\n", jsString(a.DropdownSelector))
		}

	case ActionSubmit:
		if loc != "" {
			fmt.Fprintf(b, "  await %s.evaluate((form) => form.requestSubmit());\n", loc)
		}

	case ActionKeypress:
		if a.Key == "" {
			return
		}
		if loc != "" {
			fmt.Fprintf(b, "  await %s.press(%s);\n", loc, jsString(a.Key))
		} else {
			fmt.Fprintf(b, "  await page.keyboard.press(%s);\n", jsString(a.Key))
		}

	case ActionCheckpoint:
		fmt.Fprintf(b, "  // checkpoint: %s\n", strings.ReplaceAll(a.Label, "\n", " "))
		if loc != "" {
			fmt.Fprintf(b, "  await expect(%s).toBeVisible();\n", loc)
		}
	}
}

// locatorExpr turns the highest-priority selector candidate into a
// Playwright locator expression.
func locatorExpr(s *SelectorStrategy) string {
	if s == nil {
		return ""
	}
	t, v := s.Primary()
	if v == "" {
		return ""
	}
	switch t {
	case SelID:
		return fmt.Sprintf("page.locator(%s)", jsString("#"+v))
	case SelDataTestID, SelAriaLabel, SelName, SelCSS, SelPosition:
		// position candidates are stored as XPath, everything else is CSS
		if t == SelPosition {
			return fmt.Sprintf("page.locator(%s)", jsString("xpath="+v))
		}
		return fmt.Sprintf("page.locator(%s)", jsString(v))
	case SelXPath, SelXPathAbsolute:
		return fmt.Sprintf("page.locator(%s)", jsString("xpath="+v))
	case SelText:
		return fmt.Sprintf("page.getByText(%s, { exact: true })", jsString(v))
	case SelTextContains:
		return fmt.Sprintf("page.getByText(%s)", jsString(v))
	}
	return ""
}

// jsString renders s as a JS string literal. JSON escaping is valid JS;
// HTML escaping is disabled so selectors like "div > a" stay readable.
func jsString(s string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		out, _ := json.Marshal(s)
		return string(out)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
