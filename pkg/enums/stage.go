package enums

import (
	"fmt"
	"strings"
)

// Stage identifies a manufacturing stage. The six process stages carry an
// order index 1..6; ReadyForDelivery and Completed are job-level terminals.
type Stage string

const (
	StageMaterialPreparation Stage = "material_preparation"
	StageCuttingShaping      Stage = "cutting_shaping"
	StageAssembly            Stage = "assembly"
	StageSanding             Stage = "sanding_surface_preparation"
	StageFinishing           Stage = "finishing"
	StageQualityCheck        Stage = "quality_check_packaging"
	StageReadyForDelivery    Stage = "ready_for_delivery"
	StageCompleted           Stage = "completed"
)

// ProcessStages lists the stages that own a process step, in order.
var ProcessStages = []Stage{
	StageMaterialPreparation,
	StageCuttingShaping,
	StageAssembly,
	StageSanding,
	StageFinishing,
	StageQualityCheck,
}

var stageLabels = map[Stage]string{
	StageMaterialPreparation: "Material Preparation",
	StageCuttingShaping:      "Cutting & Shaping",
	StageAssembly:            "Assembly",
	StageSanding:             "Sanding & Surface Preparation",
	StageFinishing:           "Finishing",
	StageQualityCheck:        "Quality Check & Packaging",
	StageReadyForDelivery:    "Ready for Delivery",
	StageCompleted:           "Completed",
}

// Index returns the 1-based position of a process stage, or 0 for terminal stages.
func (s Stage) Index() int {
	for i, candidate := range ProcessStages {
		if candidate == s {
			return i + 1
		}
	}
	return 0
}

// IsProcessStage reports whether the stage owns a process step.
func (s Stage) IsProcessStage() bool {
	return s.Index() > 0
}

func (s Stage) IsValid() bool {
	_, ok := stageLabels[s]
	return ok
}

// Label returns the display name shown to operators and customers.
func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

// StageAt returns the process stage at the 1-based index.
func StageAt(index int) (Stage, bool) {
	if index < 1 || index > len(ProcessStages) {
		return "", false
	}
	return ProcessStages[index-1], true
}

// ParseStage accepts either the stage code or its display label, case-insensitively.
func ParseStage(value string) (Stage, error) {
	trimmed := strings.TrimSpace(value)
	for stage, label := range stageLabels {
		if strings.EqualFold(string(stage), trimmed) || strings.EqualFold(label, trimmed) {
			return stage, nil
		}
	}
	return "", fmt.Errorf("invalid stage %q", value)
}
