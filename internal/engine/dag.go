package engine

import (
	"slices"

	"github.com/shaiso/Coordinator/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Action — определение действия.
	Action *domain.ActionDef

	// ID — имя действия.
	ID string

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// DAG — направленный ациклический граф действий workflow.
type DAG struct {
	// Nodes — все узлы графа (имя → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей (точки входа), в порядке объявления.
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node
}

// BuildDAG строит DAG из WorkflowApp.
func BuildDAG(app *domain.WorkflowApp) (*DAG, error) {
	dag := &DAG{
		Nodes:     make(map[string]*Node, len(app.Actions)),
		RootNodes: make([]*Node, 0),
	}

	// Первый проход: создаём все узлы
	for i := range app.Actions {
		action := &app.Actions[i]
		dag.Nodes[action.Name] = &Node{
			Action:     action,
			ID:         action.Name,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
	}

	// Второй проход: связываем узлы по зависимостям
	for i := range app.Actions {
		action := &app.Actions[i]
		node := dag.Nodes[action.Name]

		for _, depName := range action.DependsOn {
			depNode, exists := dag.Nodes[depName]
			if !exists {
				return nil, NewValidationError(action.Name, "depends_on",
					"depends on unknown action: "+depName, ErrMissingDependency)
			}
			dag.addEdge(depNode, node)
		}
	}

	// Корневые узлы в порядке объявления
	for i := range app.Actions {
		if node := dag.Nodes[app.Actions[i].Name]; node.InDegree == 0 {
			dag.RootNodes = append(dag.RootNodes, node)
		}
	}

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// addEdge добавляет ребро между узлами.
// Дополнительно проверяет на дубликаты, чтобы избежать двойного учета InDegree.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := slices.Clone(d.RootNodes)
	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(d.Nodes) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// ReadyNodes возвращает узлы, готовые к запуску, в топологическом порядке.
//
// Узел готов, если все его зависимости в completed,
// а сам он не в completed и не в started.
func (d *DAG) ReadyNodes(completed, started map[string]bool) []*Node {
	ready := make([]*Node, 0)

	for _, node := range d.Order {
		if completed[node.ID] || started[node.ID] {
			continue
		}

		allDepsCompleted := true
		for _, dep := range node.DependsOn {
			if !completed[dep.ID] {
				allDepsCompleted = false
				break
			}
		}

		if allDepsCompleted {
			ready = append(ready, node)
		}
	}

	return ready
}

// GetNode возвращает узел по имени.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// IsComplete проверяет, все ли узлы завершены.
func (d *DAG) IsComplete(completed map[string]bool) bool {
	for id := range d.Nodes {
		if !completed[id] {
			return false
		}
	}
	return true
}
