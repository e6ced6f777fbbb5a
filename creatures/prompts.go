package creatures

import (
	"fmt"
	"strings"
)

const (
	doodleImageInstruction = "Create a high-quality PNG of an original battle-creature based on this doodle.\n" +
		"Keep the same character identity, colors, and silhouette, but polish proportions and details.\n" +
		"Scene: spotlighted in a stylized creature arena with subtle stadium lighting, boundary lines, and a soft bokeh crowd.\n" +
		"Keep the background clean and readable (arena context, shallow depth of field).\n" +
		"Do not depict a plush/toy or fabric; render a lively creature illustration.\n" +
		"Return only the image."

	metadataInstruction = "Design an original battle-creature matching the reference. " +
		"Use allowed types and include the name in each power description."

	actionTemperature = 0.9
)

var (
	cameraAngles = []string{
		"dynamic low-angle 3/4 view from the left",
		"dynamic low-angle 3/4 view from the right",
		"high-angle 3/4 view from the left",
		"high-angle 3/4 view from the right",
		"profile side view mid-action",
		"rear over-shoulder toward the opponent",
		"front-facing wide-angle with motion blur",
	}
	actionPoses = []string{
		"leaping forward mid-attack",
		"crouched, charging energy",
		"winding up a heavy strike",
		"sideways dash with motion blur",
		"aerial spin attack",
		"defensive stance with braced footing",
	}
)

type actionFraming struct {
	Angle string
	Pose  string
}

func chooseFraming(r Rand) actionFraming {
	return actionFraming{Angle: pick(r, cameraAngles), Pose: pick(r, actionPoses)}
}

func actionInstruction(c *Creature, power Power, framing actionFraming) string {
	details := strings.TrimSpace(power.Description)
	if details == "" {
		details = power.Name
	}
	lines := []string{
		fmt.Sprintf("Create a high-quality PNG of the same original battle-creature performing the action %q.", power.Name),
		fmt.Sprintf("Action details: %s.", strings.TrimRight(details, ".")),
		fmt.Sprintf("Appearance guide: Name: %s, Type(s): %s. %s", c.Name, c.Type, c.Characteristics),
		"IMPORTANT: DO NOT USE THE SAME CAMERA ANGLE OR POSE AS THE REFERENCE. " +
			"Change the camera by at least 45 degrees and use this framing: " + framing.Angle + ".",
		"Pose cue: " + framing.Pose + ". Recompose the shot so the creature is in a different screen position " +
			"(rule-of-thirds acceptable). Alter pose/orientation to communicate motion (limbs extended, torso twisted).",
		"Scene: stylized creature arena with stadium lighting and boundary lines; keep the background clean and readable.",
		"Include a faint opponent silhouette in the background to suggest a battle, without stealing focus.",
		"Return only the image.",
	}
	return strings.Join(lines, "\n")
}
