package tree

import "sort"

// Row is one displayable line: a folder or a file. RowPath is the tree
// path with / separators and is the identity key for collapse lookups;
// files are identified by AbsPath instead.
type Row struct {
	DisplayName string
	RowPath     string
	IsFolder    bool
	AbsPath     string // empty for folders
}

// Flatten produces the display-ordered row sequence for the tree given the
// set of collapsed folder row paths. At every level files come first,
// alphabetically, then subdirectories alphabetically. A collapsed folder
// contributes only its own row. A subdirectory holding exactly one file
// and no subdirectories is elided: the file is emitted directly with the
// folder segment folded into its display name.
func Flatten(root *Dir, collapsed map[string]bool) []Row {
	var rows []Row
	flattenDir(root, "", collapsed, &rows)
	return rows
}

func flattenDir(d *Dir, prefix string, collapsed map[string]bool, rows *[]Row) {
	var fileNames, dirNames []string
	for name, node := range d.Entries {
		switch node.(type) {
		case *File:
			fileNames = append(fileNames, name)
		case *Dir:
			dirNames = append(dirNames, name)
		}
	}
	sort.Strings(fileNames)
	sort.Strings(dirNames)

	for _, name := range fileNames {
		f := d.Entries[name].(*File)
		*rows = append(*rows, Row{
			DisplayName: joinPath(prefix, name),
			RowPath:     joinPath(prefix, name),
			AbsPath:     f.AbsPath,
		})
	}

	for _, name := range dirNames {
		sub := d.Entries[name].(*Dir)
		rowPath := joinPath(prefix, name)

		if onlyName, onlyFile, ok := singleFileDir(sub); ok {
			*rows = append(*rows, Row{
				DisplayName: joinPath(rowPath, onlyName),
				RowPath:     joinPath(rowPath, onlyName),
				AbsPath:     onlyFile.AbsPath,
			})
			continue
		}

		*rows = append(*rows, Row{
			DisplayName: rowPath + "/",
			RowPath:     rowPath,
			IsFolder:    true,
		})
		if !collapsed[rowPath] {
			flattenDir(sub, rowPath, collapsed, rows)
		}
	}
}

// singleFileDir reports whether d holds exactly one file and nothing else.
func singleFileDir(d *Dir) (string, *File, bool) {
	if len(d.Entries) != 1 {
		return "", nil, false
	}
	for name, node := range d.Entries {
		if f, ok := node.(*File); ok {
			return name, f, true
		}
	}
	return "", nil, false
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// FilePaths returns the absolute path of every file row, in row order.
func FilePaths(rows []Row) []string {
	var out []string
	for _, r := range rows {
		if !r.IsFolder {
			out = append(out, r.AbsPath)
		}
	}
	return out
}
