package scene

import (
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/slices"
)

/** @brief A transform in the scene tree holding child nodes and entities. */
type SceneNode struct {
	name      string
	transform mgl32.Mat4
	parent    *SceneNode
	children  []*SceneNode
	entities  []Entity
}

func NewSceneNode(name string) *SceneNode {
	return &SceneNode{name: name, transform: mgl32.Ident4()}
}

func (n *SceneNode) Name() string {
	return n.name
}

func (n *SceneNode) Parent() *SceneNode {
	return n.parent
}

func (n *SceneNode) Children() []*SceneNode {
	return n.children
}

func (n *SceneNode) Entities() []Entity {
	return n.entities
}

func (n *SceneNode) NodeTransformation() mgl32.Mat4 {
	return n.transform
}

func (n *SceneNode) SetNodeTransformation(transform mgl32.Mat4) {
	n.transform = transform
}

// TotalTransformation is the world transform: every ancestor applied
// before the node's own transform.
func (n *SceneNode) TotalTransformation() mgl32.Mat4 {
	total := n.transform
	for p := n.parent; p != nil; p = p.parent {
		total = p.transform.Mul4(total)
	}
	return total
}

// WorldPosition is the translation part of TotalTransformation.
func (n *SceneNode) WorldPosition() mgl32.Vec3 {
	return n.TotalTransformation().Col(3).Vec3()
}

// AttachSceneNode moves child under n, detaching it from its previous parent.
func (n *SceneNode) AttachSceneNode(child *SceneNode) {
	if child == nil || child == n || child.parent == n {
		return
	}
	if child.parent != nil {
		child.parent.DetachSceneNode(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

func (n *SceneNode) DetachSceneNode(child *SceneNode) {
	if i := slices.Index(n.children, child); i >= 0 {
		n.children = slices.Delete(n.children, i, i+1)
		child.parent = nil
	}
}

// Detach removes the node from its parent, if any.
func (n *SceneNode) Detach() {
	if n.parent != nil {
		n.parent.DetachSceneNode(n)
	}
}

func (n *SceneNode) AttachEntity(entity Entity) {
	if !slices.Contains(n.entities, entity) {
		n.entities = append(n.entities, entity)
	}
}

func (n *SceneNode) DetachEntity(entity Entity) {
	if i := slices.Index(n.entities, entity); i >= 0 {
		n.entities = slices.Delete(n.entities, i, i+1)
	}
}

// Walk visits n and its descendants depth first until fn returns an error.
func (n *SceneNode) Walk(fn func(node *SceneNode) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, child := range n.children {
		if err := child.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}
