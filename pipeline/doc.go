/*
Package pipeline sequences entity commands against an interfaces.DirectoryBackend.

Every command goes through the same steps:

 1. Normalize the primary key (trailing dot stripped) and resolve it to a
    backend identifier, falling back to the short-name attribute for dotless keys.
 2. Normalize and validate the payload with the entity schema.
 3. Run the pre-hook of the command's Strategy.
 4. Call the backend primitive for the operation kind, or the Strategy's Executor.
 5. Run the post-hook on each returned entry.
 6. Shape the result: sensitive attributes dropped, names mapped back to public
    field names, and a summary rendered.

Hooks are plain functions grouped in a Strategy per operation kind. Commands are
collected in a Registry value that front ends receive at construction.

Find walks backend pages lazily through interfaces.Pages and stops once the
size limit is reached, reporting Truncated when more entries matched.
*/
package pipeline
