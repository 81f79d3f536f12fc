// Package loader reads documents out of database tables and writes them
// back.
//
// A Loader turns rows from a table or arbitrary query into langchaingo
// documents. The columns rendered into page content and the formatter used
// (text, csv, yaml, json or a custom Formatter) are configurable:
//
//	l, err := loader.NewLoader(eng,
//		loader.WithTableName("articles"),
//		loader.WithContentColumns([]string{"title", "body"}),
//		loader.WithFormat("yaml"),
//	)
//	docs, err := l.Load(ctx)
//
// A DocumentSaver is the write-side counterpart for tables created with
// engine.InitDocumentTable.
package loader
