package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
)

// CalculatorTool evaluates arithmetic expressions with standard operator
// precedence and IEEE-754 double-precision semantics.
//
// The input language is deliberately tiny: numeric literals, the operators
// +, -, *, /, % and **, unary sign, and parentheses. Anything else,
// identifiers and function calls included, is rejected before evaluation, so
// model-generated input cannot smuggle code through this tool.
type CalculatorTool struct {
	name string
}

func NewCalculatorTool(name string) *CalculatorTool {
	return &CalculatorTool{name: name}
}

func (t *CalculatorTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name: t.name,
		Description: "Performs mathematical calculations: addition, subtraction, " +
			"multiplication, division, modulo (%), exponentiation (**), and " +
			"parenthesized expressions. The input must be a plain arithmetic " +
			"expression, for example `200*7` or `1000 * 1.07 ** 10`.",
		Parameters: []ToolParameter{
			{
				Name:        "expression",
				Type:        "string",
				Description: "The arithmetic expression to evaluate",
				Required:    true,
			},
		},
	}
}

func (t *CalculatorTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	raw, ok := args["expression"]
	if !ok {
		return "", fmt.Errorf("%w: expression parameter is required", ErrInvalidArguments)
	}
	expr, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: expression must be a string", ErrInvalidArguments)
	}

	result, err := evaluate(expr)
	if err != nil {
		return "", err
	}

	return strconv.FormatFloat(result, 'f', -1, 64), nil
}

// evaluate parses and computes the expression with a recursive descent
// parser over a fixed token alphabet.
func evaluate(expr string) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, fmt.Errorf("%w: empty expression", ErrInvalidArguments)
	}

	p := &parser{tokens: tokens}
	result, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.tokens) {
		return 0, fmt.Errorf("%w: unexpected token %q", ErrEvaluation, p.tokens[p.pos].text)
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return 0, fmt.Errorf("%w: result is not a finite number", ErrEvaluation)
	}
	return result, nil
}

type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenOp
	tokenLParen
	tokenRParen
)

type token struct {
	kind  tokenKind
	text  string
	value float64
}

func tokenize(expr string) ([]token, error) {
	var tokens []token

	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '*' && i+1 < len(expr) && expr[i+1] == '*':
			tokens = append(tokens, token{kind: tokenOp, text: "**"})
			i += 2
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '%':
			tokens = append(tokens, token{kind: tokenOp, text: string(c)})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "("})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")"})
			i++
		case (c >= '0' && c <= '9') || c == '.':
			start := i
			for i < len(expr) && ((expr[i] >= '0' && expr[i] <= '9') || expr[i] == '.') {
				i++
			}
			text := expr[start:i]
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: malformed number %q", ErrInvalidArguments, text)
			}
			tokens = append(tokens, token{kind: tokenNumber, text: text, value: value})
		default:
			return nil, fmt.Errorf("%w: disallowed character %q in expression", ErrInvalidArguments, string(c))
		}
	}

	return tokens, nil
}

type parser struct {
	tokens []token
	pos    int
}

// parseExpr := term (('+'|'-') term)*
func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}

	for p.pos < len(p.tokens) && p.tokens[p.pos].kind == tokenOp {
		op := p.tokens[p.pos].text
		if op != "+" && op != "-" {
			break
		}
		p.pos++

		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}

	return left, nil
}

// parseTerm := factor (('*'|'/'|'%') factor)*
func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}

	for p.pos < len(p.tokens) && p.tokens[p.pos].kind == tokenOp {
		op := p.tokens[p.pos].text
		if op != "*" && op != "/" && op != "%" {
			break
		}
		p.pos++

		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, fmt.Errorf("%w: division by zero", ErrEvaluation)
			}
			left /= right
		case "%":
			if right == 0 {
				return 0, fmt.Errorf("%w: modulo by zero", ErrEvaluation)
			}
			left = math.Mod(left, right)
		}
	}

	return left, nil
}

// parseFactor := ('+'|'-') factor | power
// Unary sign binds looser than '**', so -2**2 is -(2**2).
func (p *parser) parseFactor() (float64, error) {
	if p.pos >= len(p.tokens) {
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrEvaluation)
	}

	tok := p.tokens[p.pos]
	if tok.kind == tokenOp && (tok.text == "-" || tok.text == "+") {
		p.pos++
		value, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if tok.text == "-" {
			return -value, nil
		}
		return value, nil
	}

	return p.parsePower()
}

// parsePower := primary ('**' factor)?
// The exponent recurses through parseFactor, making '**' right-associative
// and allowing a signed exponent (2**-3).
func (p *parser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}

	if p.pos < len(p.tokens) && p.tokens[p.pos].kind == tokenOp && p.tokens[p.pos].text == "**" {
		p.pos++
		exponent, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exponent), nil
	}

	return base, nil
}

// parsePrimary := number | '(' expr ')'
func (p *parser) parsePrimary() (float64, error) {
	if p.pos >= len(p.tokens) {
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrEvaluation)
	}

	tok := p.tokens[p.pos]
	switch tok.kind {
	case tokenNumber:
		p.pos++
		return tok.value, nil

	case tokenLParen:
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.pos >= len(p.tokens) || p.tokens[p.pos].kind != tokenRParen {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrEvaluation)
		}
		p.pos++
		return value, nil

	default:
		return 0, fmt.Errorf("%w: unexpected token %q", ErrEvaluation, tok.text)
	}
}
