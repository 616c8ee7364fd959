package graph

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// EndTarget — зарезервированная цель перехода on_success.
// Шаг с on_success: end завершает путь, даже если он не последний
// в списке.
const EndTarget = "end"

// triggerKind — тип узла по умолчанию для триггеров.
const triggerKind = "trigger"

// Метки рёбер, которые расставляет компилятор.
const (
	labelSuccess = "success"
	labelError   = "error"
)

// StepList — линейная текстовая форма flow: триггеры и упорядоченные
// шаги. Используется для импорта и экспорта определений через YAML
// и JSON; движок эту форму не видит.
type StepList struct {
	// Name — имя flow.
	Name string `json:"name" yaml:"name"`

	// Triggers — входные узлы. У триггера нет входящих рёбер,
	// каждый триггер ведёт к первому шагу списка.
	Triggers []TriggerDef `json:"triggers,omitempty" yaml:"triggers,omitempty"`

	// Steps — шаги в порядке выполнения. Без явного on_success шаг
	// переходит к следующему по списку.
	Steps []StepDef `json:"steps" yaml:"steps"`
}

// TriggerDef — описание триггера в списке шагов.
type TriggerDef struct {
	// ID — идентификатор узла, уникальный вместе с ID шагов.
	ID string `json:"id" yaml:"id"`

	// Kind — тип узла. Пустой — "trigger".
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Name — отображаемое имя. Пустое — совпадает с ID.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Config — конфигурация узла.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// StepDef — описание одного шага.
type StepDef struct {
	// ID — идентификатор узла, уникальный вместе с ID триггеров.
	ID string `json:"id" yaml:"id"`

	// Kind — тип узла: "mapper", "validation", "interface_source" и т.д.
	Kind string `json:"kind" yaml:"kind"`

	// Name — отображаемое имя. Пустое — совпадает с ID.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Config — конфигурация узла.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`

	// OnSuccess — явная цель успешного перехода: ID шага или "end".
	// Пустая — следующий шаг списка.
	OnSuccess string `json:"on_success,omitempty" yaml:"on_success,omitempty"`

	// OnError — цель перехода при condition_met=false или ошибке
	// валидации. Пустая — перехода нет.
	OnError string `json:"on_error,omitempty" yaml:"on_error,omitempty"`
}

// ParseYAML разбирает список шагов из YAML.
func ParseYAML(data []byte) (*StepList, error) {
	var list StepList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse step list yaml: %w", err)
	}
	return &list, nil
}

// ParseJSON разбирает список шагов из JSON.
func ParseJSON(data []byte) (*StepList, error) {
	var list StepList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse step list json: %w", err)
	}
	return &list, nil
}

// EncodeYAML сериализует список шагов в YAML.
func (l *StepList) EncodeYAML() ([]byte, error) {
	data, err := yaml.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode step list yaml: %w", err)
	}
	return data, nil
}
