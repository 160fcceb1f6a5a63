package catalog

// Standard operation names understood by the remote design-tool executor.
const (
	OpPing            = "ping"
	OpGetDocumentInfo = "get_document_info"
	OpGetSelection    = "get_selection"
	OpGetNodeInfo     = "get_node_info"
	OpScanTextNodes   = "scan_text_nodes"
	OpSetTextContent  = "set_text_content"
	OpSetFillColor    = "set_fill_color"
	OpMoveNode        = "move_node"
	OpResizeNode      = "resize_node"
	OpDeleteNode      = "delete_node"
	OpExportNodeImage = "export_node_as_image"
	OpCreateRectangle = "create_rectangle"
	OpCreateText      = "create_text"
)

// StandardDefinitions returns the built-in operation catalog. The bridge
// treats each entry as an opaque named operation; the schemas exist only to
// reject obviously malformed arguments before a call occupies a table slot.
func StandardDefinitions() []Definition {
	return []Definition{
		NewDefinition(OpPing, "Round-trip connectivity check against the executor",
			objectSchema(map[string]any{
				"message": stringProp("Text echoed back by the executor"),
			})),
		NewDefinition(OpGetDocumentInfo, "Read summary information about the open document",
			objectSchema(map[string]any{})),
		NewDefinition(OpGetSelection, "Read the current selection",
			objectSchema(map[string]any{})),
		NewDefinition(OpGetNodeInfo, "Read detailed information about one node",
			objectSchema(map[string]any{
				"nodeId": stringProp("Identifier of the node to inspect"),
			}, "nodeId")),
		NewDefinition(OpScanTextNodes, "Enumerate text nodes under a subtree",
			objectSchema(map[string]any{
				"nodeId":      stringProp("Root of the subtree to scan"),
				"useChunking": boolProp("Stream results in chunks for large subtrees"),
			}, "nodeId")),
		NewDefinition(OpSetTextContent, "Replace the characters of a text node",
			objectSchema(map[string]any{
				"nodeId": stringProp("Text node to edit"),
				"text":   stringProp("Replacement characters"),
			}, "nodeId", "text")),
		NewDefinition(OpSetFillColor, "Set the solid fill color of a node",
			objectSchema(map[string]any{
				"nodeId": stringProp("Node to recolor"),
				"r":      numberProp("Red channel, 0-1"),
				"g":      numberProp("Green channel, 0-1"),
				"b":      numberProp("Blue channel, 0-1"),
				"a":      numberProp("Alpha channel, 0-1"),
			}, "nodeId", "r", "g", "b")),
		NewDefinition(OpMoveNode, "Move a node to an absolute position",
			objectSchema(map[string]any{
				"nodeId": stringProp("Node to move"),
				"x":      numberProp("New X position"),
				"y":      numberProp("New Y position"),
			}, "nodeId", "x", "y")),
		NewDefinition(OpResizeNode, "Resize a node",
			objectSchema(map[string]any{
				"nodeId": stringProp("Node to resize"),
				"width":  numberProp("New width"),
				"height": numberProp("New height"),
			}, "nodeId", "width", "height")),
		NewDefinition(OpDeleteNode, "Delete a node",
			objectSchema(map[string]any{
				"nodeId": stringProp("Node to delete"),
			}, "nodeId")),
		NewDefinition(OpExportNodeImage, "Export a node as an image",
			objectSchema(map[string]any{
				"nodeId": stringProp("Node to export"),
				"format": stringProp("Image format (PNG, JPG, SVG, PDF)"),
				"scale":  numberProp("Export scale factor"),
			}, "nodeId")),
		NewDefinition(OpCreateRectangle, "Create a rectangle node",
			objectSchema(map[string]any{
				"x":      numberProp("X position"),
				"y":      numberProp("Y position"),
				"width":  numberProp("Width"),
				"height": numberProp("Height"),
				"name":   stringProp("Optional layer name"),
			}, "x", "y", "width", "height")),
		NewDefinition(OpCreateText, "Create a text node",
			objectSchema(map[string]any{
				"x":        numberProp("X position"),
				"y":        numberProp("Y position"),
				"text":     stringProp("Initial characters"),
				"fontSize": numberProp("Font size in pixels"),
			}, "x", "y", "text")),
	}
}

// StandardRegistry builds a registry preloaded with the built-in catalog.
func StandardRegistry() *Registry {
	r, err := NewRegistry(StandardDefinitions()...)
	if err != nil {
		// The built-in set is static; a duplicate here is a programming error.
		panic("standard catalog invalid: " + err.Error())
	}
	return r
}
