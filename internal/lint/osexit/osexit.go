// Package osexit запрещает прямой вызов os.Exit в функции main пакета main.
//
// Выход из main через os.Exit пропускает отложенные вызовы: сервер не успевает
// закрыть подключения к хранилищу и сбросить буфер логгера.
package osexit

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer анализатор для multichecker.
// nolint:gochecknoglobals
var Analyzer = &analysis.Analyzer{
	Name:     "osexit",
	Doc:      "check for direct os.Exit calls in main function of main package",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	if pass.Pkg.Name() != "main" {
		return nil, nil //nolint:nilnil
	}
	ins, _ := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	ins.WithStack([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push {
			return true
		}
		call, _ := n.(*ast.CallExpr)
		if !isOsExit(pass, call) || !insideMain(stack) {
			return true
		}
		pass.Reportf(call.Pos(), "direct call os.Exit is not allowed in main function")
		return true
	})
	return nil, nil //nolint:nilnil
}

// isOsExit сверяет вызываемую функцию по типам, а не по имени, поэтому
// переименованный импорт пакета os тоже ловится.
func isOsExit(pass *analysis.Pass, call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}
	return fn.Pkg().Path() == "os" && fn.Name() == "Exit"
}

// insideMain проверяет, что ближайшая объемлющая функция верхнего уровня это main.
// Вызовы внутри замыканий, объявленных в main, тоже считаются.
func insideMain(stack []ast.Node) bool {
	for i := len(stack) - 1; i >= 0; i-- {
		if decl, ok := stack[i].(*ast.FuncDecl); ok {
			return decl.Recv == nil && decl.Name.Name == "main"
		}
	}
	return false
}
