package engine

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Coordinator/internal/domain"
)

// ParseWorkflow разбирает определение workflow из YAML (или JSON) и валидирует его.
func ParseWorkflow(data []byte, known func(string) bool) (*domain.WorkflowApp, error) {
	var app domain.WorkflowApp
	if err := yaml.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	if err := ValidateWorkflow(&app, known); err != nil {
		return nil, err
	}
	return &app, nil
}

// ParseCoordinator разбирает определение координатора и валидирует его.
func ParseCoordinator(data []byte, known func(string) bool) (*domain.CoordinatorApp, error) {
	var app domain.CoordinatorApp
	if err := yaml.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("parse coordinator: %w", err)
	}
	if err := ValidateCoordinator(&app, known); err != nil {
		return nil, err
	}
	return &app, nil
}

// ParseBundle разбирает определение bundle и валидирует его.
func ParseBundle(data []byte, known func(string) bool) (*domain.BundleApp, error) {
	var app domain.BundleApp
	if err := yaml.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("parse bundle: %w", err)
	}
	if err := ValidateBundle(&app, known); err != nil {
		return nil, err
	}
	return &app, nil
}

// ValidateWorkflow выполняет полную валидацию WorkflowApp.
//
// Проверяет:
// - Наличие имени и действий
// - Уникальность имён действий
// - Известность типов (known == nil — любой непустой тип)
// - Валидность зависимостей и отсутствие циклов
func ValidateWorkflow(app *domain.WorkflowApp, known func(string) bool) error {
	if app == nil || len(app.Actions) == 0 {
		return ErrEmptyActions
	}
	if app.Name == "" {
		return NewValidationError("", "name", "workflow has no name", ErrEmptyName)
	}

	names := make(map[string]bool, len(app.Actions))
	for i := range app.Actions {
		if err := validateAction(&app.Actions[i], names, known); err != nil {
			return err
		}
	}

	// Зависимости и циклы проверяет построение DAG
	if _, err := BuildDAG(app); err != nil {
		return err
	}

	return nil
}

// validateAction валидирует одно действие.
// names — уже встреченные имена (для проверки уникальности).
func validateAction(action *domain.ActionDef, names map[string]bool, known func(string) bool) error {
	if action.Name == "" {
		return NewValidationError("", "name", "action has empty name", ErrEmptyActionName)
	}

	if names[action.Name] {
		return NewValidationError(action.Name, "name",
			fmt.Sprintf("duplicate action name: %s", action.Name), ErrDuplicateActionName)
	}
	names[action.Name] = true

	if action.Type == "" {
		return NewValidationError(action.Name, "type", "action has empty type", ErrUnknownActionType)
	}
	if known != nil && !known(action.Type) {
		return NewValidationError(action.Name, "type",
			fmt.Sprintf("unknown action type: %s", action.Type), ErrUnknownActionType)
	}

	for _, dep := range action.DependsOn {
		if dep == action.Name {
			return NewValidationError(action.Name, "depends_on",
				"action depends on itself", ErrSelfDependency)
		}
	}

	return nil
}

// ValidateCoordinator валидирует CoordinatorApp и вложенный workflow.
// Синтаксис Frequency проверяет планировщик координатора.
func ValidateCoordinator(app *domain.CoordinatorApp, known func(string) bool) error {
	if app == nil || app.Name == "" {
		return NewValidationError("", "name", "coordinator has no name", ErrEmptyName)
	}
	if app.Frequency == "" {
		return NewValidationError(app.Name, "frequency", "coordinator has no frequency", ErrEmptyFrequency)
	}
	if app.Start.IsZero() || !app.End.After(app.Start) {
		return NewValidationError(app.Name, "end", "end must be after start", ErrInvalidWindow)
	}

	inputs := make(map[string]bool, len(app.Inputs))
	for _, in := range app.Inputs {
		if in.Name == "" || in.URI == "" {
			return NewValidationError(app.Name, "inputs", "input has empty name or uri", ErrEmptyInput)
		}
		if inputs[in.Name] {
			return NewValidationError(app.Name, "inputs",
				fmt.Sprintf("duplicate input name: %s", in.Name), ErrDuplicateInput)
		}
		inputs[in.Name] = true
	}

	if err := ValidateWorkflow(&app.Workflow, known); err != nil {
		return fmt.Errorf("coordinator %s: %w", app.Name, err)
	}
	return nil
}

// ValidateBundle валидирует BundleApp и все координаторы.
func ValidateBundle(app *domain.BundleApp, known func(string) bool) error {
	if app == nil || app.Name == "" {
		return NewValidationError("", "name", "bundle has no name", ErrEmptyName)
	}
	if len(app.Coordinators) == 0 {
		return NewValidationError(app.Name, "coordinators", "bundle has no coordinators", ErrEmptyCoordinators)
	}

	names := make(map[string]bool, len(app.Coordinators))
	for i := range app.Coordinators {
		bc := &app.Coordinators[i]
		if bc.Name == "" {
			bc.Name = bc.App.Name
		}
		if names[bc.Name] {
			return NewValidationError(app.Name, "coordinators",
				fmt.Sprintf("duplicate coordinator name: %s", bc.Name), ErrDuplicateActionName)
		}
		names[bc.Name] = true

		if err := ValidateCoordinator(&bc.App, known); err != nil {
			return fmt.Errorf("bundle %s: %w", app.Name, err)
		}
	}
	return nil
}
