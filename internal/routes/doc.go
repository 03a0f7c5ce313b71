// Package routes compiles the declarative page route table and resolves
// request paths against it.
//
// A table is built once at startup from a list of [Definition] values and is
// read-only afterwards; handlers share it through a *Table handle.
//
// Matching follows the conventions the table was authored against:
//
//   - paths are matched case-insensitively and a trailing slash is optional;
//   - a child path is joined to its parent's path, and an empty child path is
//     the default child of its parent layout;
//   - a child path that begins with "/" is absolute: it is matched from the
//     root, without the parent's prefix, but the parent stays in the chain of
//     layouts the child renders inside;
//   - static segments outrank ":param" segments, and on equal rank the deeper
//     route wins.
//
// [Lint] flags declarations that are legal but probably not what the author
// meant, such as absolute child paths.
package routes
