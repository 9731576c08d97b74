package simlab

import (
	"github.com/simlab-dev/simlab/internal/model"
	"github.com/simlab-dev/simlab/internal/topology"
)

// Lab is a local snapshot of a lab and the entry point to its nodes, links
// and annotations. Obtain one through [Client.CreateLab],
// [Client.JoinExistingLab] or [Client.ImportLab].
type Lab = topology.Lab

// Node is a device in a lab.
type Node = topology.Node

// Interface is a connector on a node.
type Interface = topology.Interface

// Link joins two interfaces on different nodes.
type Link = topology.Link

// Annotation is a drawing element on the topology canvas.
type Annotation = topology.Annotation

// SmartAnnotation is an automatic grouping annotation attached to a node tag.
type SmartAnnotation = topology.SmartAnnotation

// Guard serializes snapshot access while event listening is active.
type Guard = topology.Guard

// Topology is a full lab document, as exported by [Lab.ExportTopology] and
// accepted by [Client.ImportLab].
type Topology = model.Topology

// LabProperties is the lab header of a [Topology].
type LabProperties = model.LabProperties

// ElementFields is a loosely-typed property bag for elements whose schema
// the controller owns, such as annotations.
type ElementFields = model.ElementFields

// SystemInfo is the controller's version and readiness.
type SystemInfo = model.SystemInfo

// NodeStatistics are a node's runtime resource counters.
type NodeStatistics = model.NodeStatistics

// LinkStatistics are a link's traffic counters, seen from its A side.
type LinkStatistics = model.LinkStatistics

// LinkCondition is the traffic shaping applied to a link.
type LinkCondition = model.LinkCondition

// Event is a single controller event from the WebSocket stream.
type Event = model.Event

// Element states reported by the controller.
const (
	StateDefined = model.StateDefined
	StateStopped = model.StateStopped
	StateStarted = model.StateStarted
	StateQueued  = model.StateQueued
	StateBooted  = model.StateBooted
)

// Annotation variants accepted by [Lab.CreateAnnotation].
const (
	AnnotationTypeRectangle = model.AnnotationTypeRectangle
	AnnotationTypeEllipse   = model.AnnotationTypeEllipse
	AnnotationTypeLine      = model.AnnotationTypeLine
	AnnotationTypeText      = model.AnnotationTypeText
)

// DefaultAutoSyncInterval is the default for [Config.AutoSyncInterval].
const DefaultAutoSyncInterval = topology.DefaultAutoSyncInterval

// IsActiveState reports whether a state counts as active (running or on its
// way to running).
func IsActiveState(state string) bool { return model.IsActiveState(state) }

// NamedLinkCondition returns the shaping preset for a known condition name
// such as "dsl1", "wifi" or "satellite".
func NamedLinkCondition(name string) (LinkCondition, error) {
	return model.NamedLinkCondition(name)
}

// Sentinel errors for [errors.Is] checks. Methods wrap these with detail
// about the failing element.
var (
	// ErrNotFound marks access to something the controller does not have.
	ErrNotFound = model.ErrNotFound
	// ErrAlreadyExists marks creation of something that already exists.
	ErrAlreadyExists = model.ErrAlreadyExists
	// ErrNotValid marks invalid input or an invalid operation.
	ErrNotValid = model.ErrNotValid
	// ErrTimeout marks an exhausted convergence wait.
	ErrTimeout = model.ErrTimeout
	// ErrStale marks access through a reference to a deleted element.
	// It matches [ErrNotFound] too.
	ErrStale = model.ErrStale
	// ErrDesynchronized marks a controller response the local snapshot
	// cannot reconcile.
	ErrDesynchronized = model.ErrDesynchronized
)
