// Package expr evaluates the condition expressions used in step `if:`
// fields and the ${{ ... }} interpolations used in run scripts,
// environment values, and runner labels.
//
// The language is deliberately small: single-quoted string literals,
// context references (matrix.os, runner.os, job.status, env.FOO), the
// operators == != && || ! with parentheses, and the status functions
// success(), failure(), cancelled(), and always().
//
// An `if:` expression without a status function carries an implicit
// leading success() conjunct, matching the hosted runner: a plain
// condition never resurrects a step in a failing job, while an explicit
// always() or failure() does.
package expr
