/*
Package conditions picks the successor of a step from its branching payload.

Four payload kinds are understood:

  - user_choice: the trimmed reply is compared, case-sensitively, to each choice
    value in order, skipping entries without next_step. A match records
    lastChoice and lastChoiceLabel.
  - conditional: ordered rules whose boolean expressions are evaluated against
    the session. The first true rule wins, otherwise default_step.
  - time_based: like conditional, evaluated against the wall clock only.
  - variable_check: always default_step.

Expressions use expr-lang syntax (comparisons, &&, ||, !, parentheses, string,
number and bool literals). The namespace for conditional rules is every session
variable by name plus:

	vars      session variables as a map
	sys       system variables as a map
	input     the trimmed reply
	userName  promoted user name
	userType  promoted user type
	hour      current hour (0-23)
	minute    current minute
	weekday   English weekday name ("Monday")

Collected replies are stored as strings. At the top level, a string that is a
plain decimal number ("25", "-3", "1.5", no leading zeros) is exposed as a
number so rules like age >= 18 work; vars.name keeps the stored value for
string comparisons ("007" stays a string everywhere).

time_based rules only see hour, minute and weekday. Unknown names evaluate to
nil. Legacy ${name} references are accepted and read as name.

Evaluation never fails a turn: a malformed payload or a broken expression falls
back to the step's static next step and is logged.
*/
package conditions
