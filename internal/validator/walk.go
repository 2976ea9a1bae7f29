package validator

import (
	"fmt"

	"github.com/dop251/goja/ast"
)

// walk traverses every node of the parsed program with an explicit
// stack, so deeply nested input cannot overflow the call stack. Checks
// are dispatched by node kind; the first violation is terminal.
func (v *Validator) walk(src string, prog *ast.Program) (Result, bool) {
	stack := make([]ast.Node, 0, 64)
	stack = pushStatements(stack, prog.Body)

	statements := 0
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := n.(ast.Statement); ok {
			statements++
			if statements > v.cfg.MaxStatements {
				return v.fail(src, n, ErrorComplexity,
					fmt.Sprintf("script exceeds the maximum of %d statements", v.cfg.MaxStatements))
			}
		}

		switch node := n.(type) {
		case *ast.CallExpression:
			if r, bad := v.checkCall(src, node); bad {
				return r, true
			}
			// A well-formed require() call is the one place the loader
			// identifier is legitimate, so only its arguments are walked.
			if id, ok := node.Callee.(*ast.Identifier); ok && id.Name.String() == "require" {
				stack = pushExpressions(stack, node.ArgumentList)
				continue
			}

		case *ast.Identifier:
			if _, blocked := v.blocked[node.Name.String()]; blocked {
				return v.fail(src, n, ErrorSecurity,
					fmt.Sprintf("use of blocked identifier %q", node.Name.String()))
			}

		case *ast.StringLiteral:
			if len(node.Value.String()) > v.cfg.MaxStringLiteral {
				return v.fail(src, n, ErrorSecurity,
					fmt.Sprintf("string literal exceeds %d characters, likely an obfuscation payload", v.cfg.MaxStringLiteral))
			}
		}

		stack = appendChildren(stack, n)
	}
	return Result{}, false
}

// checkCall enforces the require() discipline and rejects member calls
// on blocked globals (blocked.anything(...)).
func (v *Validator) checkCall(src string, call *ast.CallExpression) (Result, bool) {
	switch callee := call.Callee.(type) {
	case *ast.Identifier:
		if callee.Name.String() != "require" {
			return Result{}, false
		}
		if len(call.ArgumentList) != 1 {
			return v.fail(src, call, ErrorSecurity, "require() must take exactly one argument")
		}
		lit, ok := call.ArgumentList[0].(*ast.StringLiteral)
		if !ok {
			return v.fail(src, call, ErrorSecurity, "require() argument must be a string literal")
		}
		if !v.moduleAllowed(lit.Value.String()) {
			return v.fail(src, call, ErrorSecurity,
				fmt.Sprintf("module %q is not in the allowed module list", lit.Value.String()))
		}
	case *ast.DotExpression:
		if obj, ok := callee.Left.(*ast.Identifier); ok {
			if _, blocked := v.blocked[obj.Name.String()]; blocked {
				return v.fail(src, call, ErrorSecurity,
					fmt.Sprintf("access to blocked global %q", obj.Name.String()))
			}
		}
	}
	return Result{}, false
}

// fail builds a rejection located at the start of node n.
func (v *Validator) fail(src string, n ast.Node, t ErrorType, msg string) (Result, bool) {
	line, col := lineCol(src, int(n.Idx0())-1)
	return Result{Error: msg, Line: line, Column: col, ErrorType: t}, true
}

func pushStatements(stack []ast.Node, list []ast.Statement) []ast.Node {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] != nil {
			stack = append(stack, list[i])
		}
	}
	return stack
}

func pushExpressions(stack []ast.Node, list []ast.Expression) []ast.Node {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] != nil {
			stack = append(stack, list[i])
		}
	}
	return stack
}

func pushNode(stack []ast.Node, n ast.Node) []ast.Node {
	if n != nil {
		stack = append(stack, n)
	}
	return stack
}

func pushBindings(stack []ast.Node, list []*ast.Binding) []ast.Node {
	for i := len(list) - 1; i >= 0; i-- {
		b := list[i]
		if b == nil {
			continue
		}
		if b.Initializer != nil {
			stack = append(stack, b.Initializer)
		}
		if b.Target != nil {
			stack = append(stack, b.Target)
		}
	}
	return stack
}

func pushProperties(stack []ast.Node, list []ast.Property) []ast.Node {
	for i := len(list) - 1; i >= 0; i-- {
		switch p := list[i].(type) {
		case *ast.PropertyKeyed:
			if p.Value != nil {
				stack = append(stack, p.Value)
			}
			if p.Computed && p.Key != nil {
				stack = append(stack, p.Key)
			}
		case *ast.PropertyShort:
			if p.Initializer != nil {
				stack = append(stack, p.Initializer)
			}
		case *ast.SpreadElement:
			stack = pushNode(stack, p.Expression)
		}
	}
	return stack
}

// appendChildren pushes the direct children of n. Node kinds with no
// children (literals, this, branch statements) fall through the default
// case untouched.
func appendChildren(stack []ast.Node, n ast.Node) []ast.Node {
	switch node := n.(type) {
	// Statements.
	case *ast.BlockStatement:
		stack = pushStatements(stack, node.List)
	case *ast.ExpressionStatement:
		stack = pushNode(stack, node.Expression)
	case *ast.IfStatement:
		if node.Alternate != nil {
			stack = append(stack, node.Alternate)
		}
		stack = pushNode(stack, node.Consequent)
		stack = pushNode(stack, node.Test)
	case *ast.ForStatement:
		stack = pushNode(stack, node.Body)
		if node.Update != nil {
			stack = append(stack, node.Update)
		}
		if node.Test != nil {
			stack = append(stack, node.Test)
		}
		switch init := node.Initializer.(type) {
		case *ast.ForLoopInitializerExpression:
			stack = pushNode(stack, init.Expression)
		case *ast.ForLoopInitializerVarDeclList:
			stack = pushBindings(stack, init.List)
		case *ast.ForLoopInitializerLexicalDecl:
			stack = pushBindings(stack, init.LexicalDeclaration.List)
		}
	case *ast.ForInStatement:
		stack = pushNode(stack, node.Body)
		stack = pushNode(stack, node.Source)
		stack = pushForInto(stack, node.Into)
	case *ast.ForOfStatement:
		stack = pushNode(stack, node.Body)
		stack = pushNode(stack, node.Source)
		stack = pushForInto(stack, node.Into)
	case *ast.WhileStatement:
		stack = pushNode(stack, node.Body)
		stack = pushNode(stack, node.Test)
	case *ast.DoWhileStatement:
		stack = pushNode(stack, node.Test)
		stack = pushNode(stack, node.Body)
	case *ast.VariableStatement:
		stack = pushBindings(stack, node.List)
	case *ast.LexicalDeclaration:
		stack = pushBindings(stack, node.List)
	case *ast.FunctionDeclaration:
		stack = pushNode(stack, node.Function)
	case *ast.ClassDeclaration:
		stack = pushNode(stack, node.Class)
	case *ast.ReturnStatement:
		if node.Argument != nil {
			stack = append(stack, node.Argument)
		}
	case *ast.ThrowStatement:
		stack = pushNode(stack, node.Argument)
	case *ast.TryStatement:
		if node.Finally != nil {
			stack = append(stack, node.Finally)
		}
		if node.Catch != nil {
			stack = pushNode(stack, node.Catch.Body)
		}
		stack = pushNode(stack, node.Body)
	case *ast.SwitchStatement:
		for i := len(node.Body) - 1; i >= 0; i-- {
			c := node.Body[i]
			if c == nil {
				continue
			}
			stack = pushStatements(stack, c.Consequent)
			if c.Test != nil {
				stack = append(stack, c.Test)
			}
		}
		stack = pushNode(stack, node.Discriminant)
	case *ast.LabelledStatement:
		stack = pushNode(stack, node.Statement)
	case *ast.WithStatement:
		stack = pushNode(stack, node.Body)
		stack = pushNode(stack, node.Object)

	// Expressions.
	case *ast.CallExpression:
		stack = pushExpressions(stack, node.ArgumentList)
		stack = pushNode(stack, node.Callee)
	case *ast.NewExpression:
		stack = pushExpressions(stack, node.ArgumentList)
		stack = pushNode(stack, node.Callee)
	case *ast.DotExpression:
		stack = pushNode(stack, node.Left)
	case *ast.BracketExpression:
		stack = pushNode(stack, node.Member)
		stack = pushNode(stack, node.Left)
	case *ast.BinaryExpression:
		stack = pushNode(stack, node.Right)
		stack = pushNode(stack, node.Left)
	case *ast.AssignExpression:
		stack = pushNode(stack, node.Right)
		stack = pushNode(stack, node.Left)
	case *ast.UnaryExpression:
		stack = pushNode(stack, node.Operand)
	case *ast.ConditionalExpression:
		if node.Alternate != nil {
			stack = append(stack, node.Alternate)
		}
		stack = pushNode(stack, node.Consequent)
		stack = pushNode(stack, node.Test)
	case *ast.SequenceExpression:
		stack = pushExpressions(stack, node.Sequence)
	case *ast.ArrayLiteral:
		stack = pushExpressions(stack, node.Value)
	case *ast.ObjectLiteral:
		stack = pushProperties(stack, node.Value)
	case *ast.SpreadElement:
		stack = pushNode(stack, node.Expression)
	case *ast.TemplateLiteral:
		stack = pushExpressions(stack, node.Expressions)
		if node.Tag != nil {
			stack = append(stack, node.Tag)
		}
	case *ast.FunctionLiteral:
		stack = pushNode(stack, node.Body)
		if node.ParameterList != nil {
			stack = pushBindings(stack, node.ParameterList.List)
		}
	case *ast.ArrowFunctionLiteral:
		switch body := node.Body.(type) {
		case *ast.BlockStatement:
			stack = pushNode(stack, body)
		case *ast.ExpressionBody:
			stack = pushNode(stack, body.Expression)
		}
		if node.ParameterList != nil {
			stack = pushBindings(stack, node.ParameterList.List)
		}
	case *ast.ClassLiteral:
		for i := len(node.Body) - 1; i >= 0; i-- {
			switch el := node.Body[i].(type) {
			case *ast.MethodDefinition:
				stack = pushNode(stack, el.Body)
				if el.Computed && el.Key != nil {
					stack = append(stack, el.Key)
				}
			case *ast.FieldDefinition:
				if el.Initializer != nil {
					stack = append(stack, el.Initializer)
				}
				if el.Computed && el.Key != nil {
					stack = append(stack, el.Key)
				}
			case *ast.ClassStaticBlock:
				stack = pushNode(stack, el.Block)
			}
		}
		if node.SuperClass != nil {
			stack = append(stack, node.SuperClass)
		}
	case *ast.ObjectPattern:
		if node.Rest != nil {
			stack = append(stack, node.Rest)
		}
		stack = pushProperties(stack, node.Properties)
	case *ast.ArrayPattern:
		if node.Rest != nil {
			stack = append(stack, node.Rest)
		}
		stack = pushExpressions(stack, node.Elements)
	}
	return stack
}

func pushForInto(stack []ast.Node, into ast.ForInto) []ast.Node {
	switch i := into.(type) {
	case *ast.ForIntoVar:
		if i.Binding != nil {
			stack = pushBindings(stack, []*ast.Binding{i.Binding})
		}
	case *ast.ForIntoExpression:
		stack = pushNode(stack, i.Expression)
	case *ast.ForDeclaration:
		stack = pushNode(stack, i.Target)
	}
	return stack
}
