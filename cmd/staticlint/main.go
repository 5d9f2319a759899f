// Command staticlint набор статических анализаторов проекта.
//
// Включает анализаторы golang.org/x/tools/go/analysis/passes, все SA проверки staticcheck,
// выбранные проверки simple и stylecheck и собственный анализатор osexit.
//
// Запуск: go run ./cmd/staticlint ./...
package main

import (
	"strings"

	"github.com/fsdevblog/shortlinks/internal/lint/osexit"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/assign"
	"golang.org/x/tools/go/analysis/passes/atomic"
	"golang.org/x/tools/go/analysis/passes/bools"
	"golang.org/x/tools/go/analysis/passes/buildtag"
	"golang.org/x/tools/go/analysis/passes/composite"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/ifaceassert"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilfunc"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shadow"
	"golang.org/x/tools/go/analysis/passes/shift"
	"golang.org/x/tools/go/analysis/passes/stdmethods"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/tests"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"golang.org/x/tools/go/analysis/passes/unusedresult"
	"honnef.co/go/tools/simple"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"
)

func main() {
	analyzers := []*analysis.Analyzer{
		assign.Analyzer,
		atomic.Analyzer,
		bools.Analyzer,
		buildtag.Analyzer,
		composite.Analyzer,
		copylock.Analyzer,
		errorsas.Analyzer,
		httpresponse.Analyzer,
		ifaceassert.Analyzer,
		loopclosure.Analyzer,
		lostcancel.Analyzer,
		nilfunc.Analyzer,
		printf.Analyzer,
		shadow.Analyzer,
		shift.Analyzer,
		stdmethods.Analyzer,
		structtag.Analyzer,
		tests.Analyzer,
		unmarshal.Analyzer,
		unreachable.Analyzer,
		unusedresult.Analyzer,
	}

	// Все SA анализаторы
	for _, v := range staticcheck.Analyzers {
		if strings.HasPrefix(v.Analyzer.Name, "SA") {
			analyzers = append(analyzers, v.Analyzer)
		}
	}

	selected := map[string]bool{
		"S1002":  true, // сравнение bool с константой
		"S1008":  true, // упрощение return bool
		"S1021":  true, // объединение объявления и присваивания функции
		"ST1005": true, // оформление текста ошибок
		"ST1019": true, // повторный импорт пакета
	}
	for _, v := range simple.Analyzers {
		if selected[v.Analyzer.Name] {
			analyzers = append(analyzers, v.Analyzer)
		}
	}
	for _, v := range stylecheck.Analyzers {
		if selected[v.Analyzer.Name] {
			analyzers = append(analyzers, v.Analyzer)
		}
	}

	analyzers = append(analyzers, osexit.Analyzer)

	multichecker.Main(analyzers...)
}
