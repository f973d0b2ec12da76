package catalog

// Stats summarises a tree.
type Stats struct {
	Topics    int `json:"topics"`
	Items     int `json:"items"`
	Videos    int `json:"videos"`
	HTML5     int `json:"html5"`
	Subtitles int `json:"subtitles"`
}

// Walk visits n and its descendants depth first, in child order. Returning
// false from fn stops descent below the current node.
func Walk(n Node, fn func(n Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	if t, ok := n.(*Topic); ok {
		for _, c := range t.children {
			walk(c, depth+1, fn)
		}
	}
}

// Count returns stats for the tree below (and excluding) the channel root.
func Count(ch *Channel) Stats {
	var s Stats
	for _, child := range ch.Root.children {
		Walk(child, func(n Node, _ int) bool {
			switch v := n.(type) {
			case *Topic:
				s.Topics++
			case *ContentItem:
				s.Items++
				switch v.Kind {
				case KindVideo:
					s.Videos++
				case KindHTML5:
					s.HTML5++
				}
				s.Subtitles += len(v.Subtitles())
			}
			return true
		})
	}
	return s
}
