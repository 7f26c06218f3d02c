// Package harness runs report-store scenarios end to end.
//
// A scenario drives the real pipeline (gateway, store, reconciler, live
// query) against an in-memory store, with a manual connectivity switch, a
// zero-delay settler, sequential IDs and a stepping clock.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: offline_then_restore
//	description: "Reports made offline sync once connectivity returns"
//	online: false
//	created_by: desa-001
//	filter: { kecamatan: Tempunak }   # optional, narrows the live query
//	steps:
//	  - submit:
//	      payload: { kecamatan: Tempunak, desa: Kupan, jenis_bencana: Banjir }
//	      at: "2025-01-15T08:00:00Z"  # optional, pins reported_at
//	    expect: { status: pending }
//	  - connectivity: online
//	  - sync: manual
//	assertions:
//	  - type: final_status
//	    id: r-0001
//	    status: synced
//	  - type: status_count
//	    status: pending
//	    count: 0
//	  - type: order
//	    ids: [r-0002, r-0001]
//	  - type: last_delivery
//	    ids: [r-0002, r-0001]
//	  - type: delivery_count
//	    count: 5
//
// # Deterministic Testing
//
// Every step runs to quiescence before the next one starts: the harness
// triggers reconciliation itself after logging each submission and waits for
// the pass to finish. The resulting trace (submissions, connectivity changes,
// passes and live-query deliveries) is therefore identical across runs and
// suitable for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/offline_then_restore.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
