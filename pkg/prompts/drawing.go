// Package prompts builds the instruction prompts sent to the vision model.
package prompts

import (
	"fmt"
	"strings"

	"github.com/fabriq-inc/fabriq-engine/pkg/models"
)

// DrawingSystemMessage frames the extraction task for the vision model.
const DrawingSystemMessage = "You are a meticulous manufacturing engineer reading a 2D machining drawing. " +
	"You extract dimensions and callouts exactly as printed. You never invent values that are not on the drawing."

// BuildDrawingPrompt creates the prompt for interpreting one drawing page.
// The optional geometry summary is included as a hint only; the model is
// told explicitly it is not ground truth.
func BuildDrawingPrompt(hint *models.GeometrySummary) string {
	var prompt strings.Builder

	prompt.WriteString("# Drawing Dimension Extraction\n\n")
	prompt.WriteString("Extract every part-feature dimension and callout from the attached drawing page.\n\n")

	if hint != nil {
		prompt.WriteString("## Geometry hint (advisory only, NOT ground truth)\n\n")
		prompt.WriteString(fmt.Sprintf("The CAD model reports a %s part, bounding box %.1f x %.1f x %.1f mm, with these round features:\n",
			hint.PartType, hint.BoundingBox.DimX(), hint.BoundingBox.DimY(), hint.BoundingBox.DimZ()))
		for _, f := range hint.RoundFaces() {
			prompt.WriteString(fmt.Sprintf("- %s %s dia %.2f mm, axial %.1f-%.1f mm\n",
				f.Orientation, f.SurfaceType, f.DiameterMM, f.ZMinMM, f.ZMaxMM))
		}
		prompt.WriteString("\nIf the drawing disagrees with the hint, report what the drawing shows.\n\n")
	}

	prompt.WriteString("## Rules\n\n")
	prompt.WriteString("1. Report part features only. NEVER report title-block, header, revision-table, or border entities as features.\n")
	prompt.WriteString("2. NEVER invent a tolerance that is not printed on the drawing. Omit tolerance_class when none is shown.\n")
	prompt.WriteString("3. If you cannot confidently locate a feature on the part, set position to null instead of guessing.\n")
	prompt.WriteString("4. Thread callouts (e.g. M30x2) go in thread_spec verbatim.\n")
	prompt.WriteString("5. Dimensions are millimeters unless the drawing states otherwise; convert if needed.\n\n")

	prompt.WriteString("## Confidence rubric\n\n")
	prompt.WriteString("- 0.95-1.00: printed, unambiguous\n")
	prompt.WriteString("- 0.80-0.94: minor ambiguity (overlapping leaders, faint print)\n")
	prompt.WriteString("- 0.50-0.79: inferred via spatial reasoning, no explicit label\n")
	prompt.WriteString("- below 0.50: a guess\n\n")

	prompt.WriteString("## Response format\n\n")
	prompt.WriteString("Respond with a JSON array only, no prose:\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`[
  {
    "label": "bore",
    "nominal_value": 12.0,
    "tolerance_class": "H7",
    "thread_spec": "",
    "position": {"axial_mm": 25.0},
    "confidence": 0.97,
    "provenance": "dimension leader, section A-A"
  }
]
`)
	prompt.WriteString("```\n")

	return prompt.String()
}
