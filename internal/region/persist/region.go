/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package persist

import (
	"fmt"
	"strconv"

	"github.com/friendsincode/regionengine/internal/region"
	"github.com/friendsincode/regionengine/internal/region/curve"
	"github.com/friendsincode/regionengine/internal/region/fade"
	"github.com/friendsincode/regionengine/internal/region/source"
)

// rootName is the document's root element name.
const rootName = "Region"

// ToNode builds the persisted document tree for r, per spec §6: the root
// carries "channels" and "scale-gain" attributes; Envelope, FadeIn,
// FadeOut, InverseFadeIn and InverseFadeOut are children.
func ToNode(r *region.Region) *Node {
	root := NewNode(rootName)
	root.SetAttr("channels", strconv.Itoa(r.NumChannels()))
	root.SetAttr("scale-gain", formatFloat32(r.ScaleAmplitude()))
	root.SetAttr("position", strconv.FormatInt(r.Position(), 10))
	root.SetAttr("start", strconv.FormatInt(r.Start(), 10))
	root.SetAttr("length", strconv.FormatInt(r.Length(), 10))
	root.SetAttr("fade-before-fx", formatBool(r.FadeBeforeFx()))
	root.SetAttr("opaque", formatBool(r.Opaque()))

	envelope := curveNode("Envelope", r.Envelope())
	envelope.SetAttr("active", formatBool(r.EnvelopeActive()))
	root.AddChild(envelope)

	root.AddChild(fadeNode("FadeIn", r.FadeIn()))
	root.AddChild(fadeNode("FadeOut", r.FadeOut()))

	if inv := r.InverseFadeInOverride(); inv != nil {
		root.AddChild(curveNode("InverseFadeIn", inv))
	}
	if inv := r.InverseFadeOutOverride(); inv != nil {
		root.AddChild(curveNode("InverseFadeOut", inv))
	}
	return root
}

// FromNode rehydrates a Region from a persisted document, wiring the
// given sources/masterSources/id/cfg (none of which the document itself
// carries — those come from the owning session/station layer, per spec
// §6 scoping persistence to the region's own decoration).
func FromNode(root *Node, id string, sources, masterSources []source.Source, cfg region.Config) (*region.Region, error) {
	if root.Name != rootName {
		return nil, fmt.Errorf("persist: unexpected root element %q", root.Name)
	}

	position, err := attrInt(root, "position")
	if err != nil {
		return nil, err
	}
	start, err := attrInt(root, "start")
	if err != nil {
		return nil, err
	}
	length, err := attrInt(root, "length")
	if err != nil {
		return nil, err
	}

	r, err := region.New(id, sources, masterSources, position, start, length, cfg)
	if err != nil {
		return nil, fmt.Errorf("persist: rehydrate region: %w", err)
	}

	if scaleStr, ok := root.Attr("scale-gain"); ok {
		v, err := strconv.ParseFloat(scaleStr, 32)
		if err != nil {
			return nil, fmt.Errorf("persist: scale-gain: %w", err)
		}
		r.SetScaleAmplitude(float32(v))
	}
	if fadeBeforeFxStr, ok := root.Attr("fade-before-fx"); ok {
		r.SetFadeBeforeFx(parseBool(fadeBeforeFxStr))
	}
	if opaqueStr, ok := root.Attr("opaque"); ok {
		r.SetOpaque(parseBool(opaqueStr))
	}

	if env := root.Child("Envelope"); env != nil {
		applyCurveNode(env, r.Envelope())
		if activeStr, ok := env.Attr("active"); ok {
			r.SetEnvelopeActive(parseBool(activeStr))
		}
	}

	if fi := root.Child("FadeIn"); fi != nil {
		if err := applyFadeNode(fi, r.FadeIn(), false, cfg.DefaultFadeShape, length); err != nil {
			return nil, fmt.Errorf("persist: FadeIn: %w", err)
		}
	}
	if fo := root.Child("FadeOut"); fo != nil {
		if err := applyFadeNode(fo, r.FadeOut(), true, cfg.DefaultFadeShape, length); err != nil {
			return nil, fmt.Errorf("persist: FadeOut: %w", err)
		}
	}
	// Both historical (InvFadeIn/Out) and modern (InverseFadeIn/Out)
	// element names are accepted, per spec §6.
	if inv := root.Child("InverseFadeIn", "InvFadeIn"); inv != nil {
		c := curve.New(curve.Linear)
		applyCurveNode(inv, c)
		r.SetInverseFadeIn(c)
	}
	if inv := root.Child("InverseFadeOut", "InvFadeOut"); inv != nil {
		c := curve.New(curve.Linear)
		applyCurveNode(inv, c)
		r.SetInverseFadeOut(c)
	}

	return r, nil
}

func curveNode(name string, c *curve.Curve) *Node {
	n := NewNode(name)
	for _, p := range c.Points() {
		pt := n.AddChild(NewNode("Point"))
		pt.SetAttr("when", strconv.FormatInt(p.When, 10))
		pt.SetAttr("value", formatFloat32(p.Value))
	}
	return n
}

func applyCurveNode(n *Node, dst *curve.Curve) {
	dst.Freeze()
	dst.Clear()
	for _, child := range n.Children {
		if child.Name != "Point" {
			continue
		}
		when, _ := attrInt(child, "when")
		valueStr, _ := child.Attr("value")
		value, _ := strconv.ParseFloat(valueStr, 32)
		dst.Add(when, float32(value))
	}
	dst.Thaw()
}

// fadeNode serialises a fade's active flag plus either "default=yes" or
// its explicit breakpoint list, per spec §6.
func fadeNode(name string, f *fade.Fade) *Node {
	n := NewNode(name)
	n.SetAttr("active", formatBool(f.Active()))
	n.SetAttr("shape", shapeName(f.Shape()))
	if f.IsDefault() {
		n.SetAttr("default", "yes")
		return n
	}
	n.SetAttr("default", "no")
	for _, p := range f.Curve().Points() {
		pt := n.AddChild(NewNode("Point"))
		pt.SetAttr("when", strconv.FormatInt(p.When, 10))
		pt.SetAttr("value", formatFloat32(p.Value))
	}
	return n
}

func applyFadeNode(n *Node, f *fade.Fade, out bool, sessionDefaultShape fade.Shape, regionLength int64) error {
	shape := sessionDefaultShape
	if shapeStr, ok := n.Attr("shape"); ok {
		shape = parseShapeName(shapeStr)
	}
	active := true
	if activeStr, ok := n.Attr("active"); ok {
		active = parseBool(activeStr)
	}

	if defaultStr, _ := n.Attr("default"); defaultStr == "yes" {
		f.SetDefault(shape)
		f.SetActive(active)
		return nil
	}

	primary := curve.New(curve.Linear)
	for _, child := range n.Children {
		if child.Name != "Point" {
			continue
		}
		when, err := attrInt(child, "when")
		if err != nil {
			return err
		}
		valueStr, _ := child.Attr("value")
		value, err := strconv.ParseFloat(valueStr, 32)
		if err != nil {
			return fmt.Errorf("fade point value: %w", err)
		}
		primary.FastAdd(when, float32(value))
	}
	length := primary.EndpointWhen(false)
	inverse := fade.BuildInverse(shape, primary, length)
	f.Restore(shape, primary, inverse, false, active)
	return nil
}

func attrInt(n *Node, key string) (int64, error) {
	v, ok := n.Attr(key)
	if !ok {
		return 0, fmt.Errorf("persist: missing attribute %q on %s", key, n.Name)
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("persist: attribute %q on %s: %w", key, n.Name, err)
	}
	return parsed, nil
}

func formatFloat32(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func parseBool(s string) bool {
	return s == "yes" || s == "true" || s == "1"
}

func shapeName(s fade.Shape) string {
	switch s {
	case fade.Fast:
		return "Fast"
	case fade.Slow:
		return "Slow"
	case fade.ConstantPower:
		return "ConstantPower"
	case fade.Symmetric:
		return "Symmetric"
	default:
		return "Linear"
	}
}

func parseShapeName(s string) fade.Shape {
	switch s {
	case "Fast":
		return fade.Fast
	case "Slow":
		return fade.Slow
	case "ConstantPower":
		return fade.ConstantPower
	case "Symmetric":
		return fade.Symmetric
	default:
		return fade.Linear
	}
}
