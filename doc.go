// Package kernelscope inspects compiled program graphs and reports how many
// fused kernels they contain, block by block, through conditionals and loops.
//
// Compilers that fuse operations into generated kernels (Paddle's CINN with
// its PIR graphs, CoreML MIL programs, or any framework described by a custom
// dialect) leave a graph whose operations are either plain ops, fused
// kernels, conditionals with a true and a false block, or loops with a body
// block. Tests of such compilers want to assert both the total number of
// kernels produced and where they ended up.
//
// # Architecture
//
// The module is organized into several packages:
//
//   - program: the typed program graph, dialects mapping operation names to
//     kinds, a Builder, and the JSON/YAML document codec.
//   - inspect: CountFusedKernels, DescribeStructure, the Report tree and the
//     Check* functions comparing against expectations.
//   - inspect/inspecttest: testify-based assertions for compiler tests.
//   - mil: loading CoreML .mlpackage, .mlmodel and MIL .pb files.
//   - cmd/kernelscope: the command line tool, including an HTTP server.
//
// # Usage
//
//	p, err := program.ReadFile("forward.json", program.Dialect{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := inspect.DescribeStructure(p.GlobalBlock())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report) // {fused_kernel_count: 1, if_0: {...}, else_0: {...}}
//
// From tests, with the expected report written in YAML:
//
//	inspecttest.RequireProgram(t, p, want)
package kernelscope
