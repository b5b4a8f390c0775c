// Package manifest reads YAML files that name groups of OpenCap sessions so
// a batch can be selected with --manifest and --group instead of listing ids
// on the command line.
//
//	groups:
//	  pilot:
//	    description: first cohort
//	    sessions:
//	      - 5249a0b7-282d-4339-bef2-8e3b3dc88372
//	      - id: 07732617-ea7d-4243-be1c-327cf33cf14f
//	        label: S28
package manifest
