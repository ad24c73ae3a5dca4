// Package source loads documents from files on disk.
//
// A Registry maps file extensions to Loaders. Each loader turns one file
// into one or more core.SourceDocument values (one per file, page, row or
// sheet depending on the format) and every document carries the path it
// came from under core.MetaSource and the format tag under core.MetaFormat.
//
// Before a loader runs, the first bytes of the file are matched against
// known binary signatures. A file whose content disagrees with its
// extension, such as a spreadsheet renamed to .csv, is rejected with
// core.ErrSourceFormatMismatch instead of being parsed as the wrong format.
//
// Directory walks a tree and loads every file with a registered extension
// on a worker pool. A file that fails to load is logged and skipped; the
// Report returned alongside the documents lists what was skipped.
package source
