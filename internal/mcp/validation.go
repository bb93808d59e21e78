package mcp

import (
	"fmt"

	"github.com/felixgeelhaar/chocostate/internal/validation"
)

// ValidateTasksInput validates TasksInput fields.
func ValidateTasksInput(in *TasksInput) error {
	if in.TaskFile != "" && len(in.Tasks) > 0 {
		return fmt.Errorf("task_file and tasks are mutually exclusive")
	}
	if in.TaskFile != "" {
		if err := validation.ValidatePath(in.TaskFile); err != nil {
			return fmt.Errorf("invalid task_file: %w", err)
		}
	}
	return nil
}

// ValidateReportInput validates the report path.
func ValidateReportInput(path string) error {
	if err := validation.ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return nil
}
