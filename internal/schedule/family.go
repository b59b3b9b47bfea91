package schedule

import (
	"regexp"
	"strings"
)

// Coat stages of the same family differ only by a numeric pass suffix:
// "Paint 2" and "paint-1" are both passes of the paint stage.
var familySuffix = regexp.MustCompile(`[\s._-]*\d+$`)

// StageFamily normalizes a stage name for grouping: case-fold and strip a
// trailing numeric suffix with its separators.
func StageFamily(stage string) string {
	s := strings.TrimSpace(stage)
	s = familySuffix.ReplaceAllString(s, "")
	return strings.ToLower(strings.TrimSpace(s))
}

// Finishing families run in the spray booth and need finish ability.
var finishingFamilies = map[string]bool{
	"prime": true,
	"paint": true,
	"clear": true,
}

// IsFinishing reports whether the stage belongs to a spray-coat family.
func IsFinishing(stage string) bool {
	return finishingFamilies[StageFamily(stage)]
}

// IsAssembly reports whether the stage is an assembly step.
func IsAssembly(stage string) bool {
	return StageFamily(stage) == "assembly"
}
