package collection

// FlatEntry is one request in run order together with its owners.
type FlatEntry struct {
	Request      *Request
	CollectionID string
	Folder       *Folder // nil for root-level requests
}

// Flatten linearizes the tree in preorder: root-level requests first,
// then each folder's own requests, then its subfolders. The order is
// stable across calls for an unchanged collection.
func Flatten(c *Collection) []FlatEntry {
	var entries []FlatEntry
	for _, r := range c.Requests {
		entries = append(entries, FlatEntry{Request: r, CollectionID: c.ID})
	}
	var walk func(f *Folder)
	walk = func(f *Folder) {
		for _, r := range f.Requests {
			entries = append(entries, FlatEntry{Request: r, CollectionID: c.ID, Folder: f})
		}
		for _, sub := range f.Folders {
			walk(sub)
		}
	}
	for _, f := range c.Folders {
		walk(f)
	}
	return entries
}
